package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code      string `json:"code" example:"VALIDATION_FAILED"`
	Message   string `json:"message" example:"Request validation failed"`
	Retryable bool   `json:"retryable,omitempty" example:"false"`
}

// ErrorEnvelope wraps ErrorResponse as returned by the API
type ErrorEnvelope struct {
	Error ErrorResponse `json:"error"`
}

func errorResponse(code, message, status, description string) response.Response {
	return response.New(ErrorEnvelope{Error: ErrorResponse{Code: code, Message: message}}, status, description)
}

// Match types

// MatchResult is one ranked celebrity
type MatchResult struct {
	CelebrityID     string  `json:"celebrity_id" example:"42"`
	Name            string  `json:"name" example:"Ada Lovelace"`
	ImageRef        string  `json:"image_ref" example:"https://cdn.example.com/celebrities/42.jpg"`
	MatchPercentage int     `json:"match_percentage" example:"87"`
	Distance        float64 `json:"distance" example:"0.41"`
}

// ShareContent is the social share text for the top result
type ShareContent struct {
	Title       string `json:"title" example:"I'm 87% like Ada Lovelace!"`
	Description string `json:"description" example:"The resemblance is uncanny."`
	Hashtags    string `json:"hashtags" example:"#CelebTwin #FaceMatch #LookAlike #Celebrity #AI"`
	ShareURL    string `json:"share_url" example:"https://celebmatch.example.com/matches/550e8400-e29b-41d4-a716-446655440000"`
}

// MatchResponse is the outcome of POST /v1/match
type MatchResponse struct {
	MatchID      string        `json:"match_id,omitempty" example:"550e8400-e29b-41d4-a716-446655440000"`
	UserImageRef string        `json:"user_image_ref,omitempty" example:"https://storage.example.com/user-uploads/1700000000000_a1b2c3d4e5f6.jpg"`
	Results      []MatchResult `json:"results"`
	Share        *ShareContent `json:"share,omitempty"`
	LatencyMs    int64         `json:"latency_ms" example:"120"`
}

// MatchHistoryEntry is a stored match
type MatchHistoryEntry struct {
	ID           string        `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	UserImageRef string        `json:"user_image_ref" example:"https://storage.example.com/user-uploads/1700000000000_a1b2c3d4e5f6.jpg"`
	Results      []MatchResult `json:"results"`
	CreatedAt    string        `json:"created_at" example:"2024-01-01T00:00:00Z"`
}

// MatchHistoryResponse lists the caller's matches
type MatchHistoryResponse struct {
	Matches []MatchHistoryEntry `json:"matches"`
	Total   int                 `json:"total" example:"1"`
}

// Celebrity types

// Celebrity is one catalog record
type Celebrity struct {
	ID       string `json:"id" example:"42"`
	Name     string `json:"name" example:"Ada Lovelace"`
	ImageRef string `json:"image_ref" example:"https://cdn.example.com/celebrities/42.jpg"`
}

// CelebrityListResponse lists the catalog
type CelebrityListResponse struct {
	Celebrities []Celebrity `json:"celebrities"`
	Total       int         `json:"total" example:"100"`
}

// Auth types

// RegisterRequest creates an account
type RegisterRequest struct {
	Email    string `json:"email" example:"ada@example.com"`
	Password string `json:"password" example:"correct-horse"`
	Name     string `json:"name" example:"Ada"`
}

// LoginRequest authenticates an account
type LoginRequest struct {
	Email    string `json:"email" example:"ada@example.com"`
	Password string `json:"password" example:"correct-horse"`
}

// User is the public account view
type User struct {
	ID        string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Email     string `json:"email" example:"ada@example.com"`
	Name      string `json:"name" example:"Ada"`
	Role      string `json:"role" example:"user"`
	CreatedAt string `json:"created_at" example:"2024-01-01T00:00:00Z"`
}

// AuthResponse carries a bearer token
type AuthResponse struct {
	Token     string `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	ExpiresAt string `json:"expires_at" example:"2024-01-02T00:00:00Z"`
	User      User   `json:"user"`
}

// Status types

// StatusResponse is the initialization state
type StatusResponse struct {
	State      string `json:"state" example:"ready"`
	Reason     string `json:"reason,omitempty" example:""`
	Entries    int    `json:"entries" example:"98"`
	Failures   int    `json:"failures" example:"2"`
	Attempt    int    `json:"attempt" example:"1"`
	Refreshing bool   `json:"refreshing,omitempty" example:"false"`
	UpdatedAt  string `json:"updated_at" example:"2024-01-01T00:00:00Z"`
	Ready      bool   `json:"ready" example:"true"`
}

// BuildFailure is one celebrity excluded from a build
type BuildFailure struct {
	CelebrityID string `json:"celebrity_id" example:"17"`
	Reason      string `json:"reason" example:"no_face"`
}

// BuildReport summarizes a cache build
type BuildReport struct {
	Total     int            `json:"total" example:"100"`
	Succeeded int            `json:"succeeded" example:"98"`
	Failures  []BuildFailure `json:"failures"`
	TimedOut  bool           `json:"timed_out" example:"false"`
	Duration  int64          `json:"duration" example:"4200000000"`
	Version   uint64         `json:"version" example:"2"`
}

// RebuildResponse is returned by a manual cache rebuild
type RebuildResponse struct {
	Report BuildReport    `json:"report"`
	Status StatusResponse `json:"status"`
}

// EmptyResponse documents bodiless replies
type EmptyResponse struct{}

type QuotaResponse struct {
	UserID    string `json:"user_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Used      int    `json:"used" example:"12"`
	Limit     int    `json:"limit" example:"30"`
	Remaining int    `json:"remaining" example:"18"`
}

// HealthResponse is returned by /health and /ready
type HealthResponse struct {
	Status  string `json:"status" example:"ok"`
	Version string `json:"version,omitempty" example:"1.0.0"`
	State   string `json:"state,omitempty" example:"ready"`
	Reason  string `json:"reason,omitempty" example:""`
}

func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "CelebMatch API",
		Version:     "v1.0.0",
		Description: "Find which celebrities a face looks most like",
		Host:        "localhost:3000",
		Path:        "/v1",
	})

	bearer := endpoint.WithSecurity([]map[string][]string{{"BearerAuth": {}}})

	endpoints := []*endpoint.EndPoint{
		// Matching

		// POST /v1/match
		endpoint.New(
			endpoint.POST,
			"/match",
			endpoint.WithTags("Match"),
			endpoint.WithSummary("Match a face against the celebrity catalog"),
			endpoint.WithDescription("Ranks the most similar celebrities for the single face in the uploaded image. Authenticated calls are stored in the match history and count towards the hourly quota."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.FileParam("image", parameter.WithRequired(), parameter.WithDescription("JPEG, PNG or WebP photo, up to 10MB")),
				parameter.IntParam("top_k", parameter.Form, parameter.WithDescription("Number of results (1-10, default 3)")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(MatchResponse{}, "200", "Ranked matches"),
			}),
			endpoint.WithErrors([]response.Response{
				errorResponse("VALIDATION_FAILED", "top_k must be between 1 and 10", "422", "Unprocessable Entity"),
				errorResponse("INVALID_IMAGE", "Invalid image format or corrupted file", "422", "Unprocessable Entity"),
				errorResponse("NO_FACE_DETECTED", "No face detected in the image", "422", "Unprocessable Entity"),
				errorResponse("RATE_LIMIT_EXCEEDED", "Rate limit exceeded, please try again later", "429", "Too Many Requests"),
				errorResponse("DETECTION_ERROR", "Face analysis failed, please try again", "502", "Bad Gateway"),
				errorResponse("CACHE_NOT_READY", "Matching is still initializing, please retry shortly", "503", "Service Unavailable"),
			}),
			bearer,
		),

		// GET /v1/matches
		endpoint.New(
			endpoint.GET,
			"/matches",
			endpoint.WithTags("Match"),
			endpoint.WithSummary("List my matches"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.IntParam("limit", parameter.Query, parameter.WithDescription("Maximum entries (1-100, default 20)")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(MatchHistoryResponse{}, "200", "Newest first"),
			}),
			endpoint.WithErrors([]response.Response{
				errorResponse("UNAUTHORIZED", "Invalid or missing credentials", "401", "Unauthorized"),
			}),
			bearer,
		),

		// GET /v1/matches/{id}
		endpoint.New(
			endpoint.GET,
			"/matches/{id}",
			endpoint.WithTags("Match"),
			endpoint.WithSummary("Get one of my matches"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("id", parameter.Path, parameter.WithRequired(), parameter.WithDescription("Match id")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(MatchHistoryEntry{}, "200", "Stored match"),
			}),
			endpoint.WithErrors([]response.Response{
				errorResponse("UNAUTHORIZED", "Invalid or missing credentials", "401", "Unauthorized"),
				errorResponse("MATCH_NOT_FOUND", "Match not found", "404", "Not Found"),
			}),
			bearer,
		),

		// GET /v1/celebrities
		endpoint.New(
			endpoint.GET,
			"/celebrities",
			endpoint.WithTags("Catalog"),
			endpoint.WithSummary("List the celebrity catalog"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(CelebrityListResponse{}, "200", "Catalog in configured order"),
			}),
		),

		// Auth

		// POST /v1/auth/register
		endpoint.New(
			endpoint.POST,
			"/auth/register",
			endpoint.WithTags("Auth"),
			endpoint.WithSummary("Create an account"),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithBody(RegisterRequest{}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(AuthResponse{}, "201", "Account created"),
			}),
			endpoint.WithErrors([]response.Response{
				errorResponse("VALIDATION_FAILED", "Request validation failed", "422", "Unprocessable Entity"),
				errorResponse("USER_ALREADY_EXISTS", "An account with this email already exists", "409", "Conflict"),
			}),
		),

		// POST /v1/auth/login
		endpoint.New(
			endpoint.POST,
			"/auth/login",
			endpoint.WithTags("Auth"),
			endpoint.WithSummary("Obtain a bearer token"),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithBody(LoginRequest{}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(AuthResponse{}, "200", "Authenticated"),
			}),
			endpoint.WithErrors([]response.Response{
				errorResponse("INVALID_CREDENTIALS", "Invalid email or password", "401", "Unauthorized"),
			}),
		),

		// GET /v1/auth/me
		endpoint.New(
			endpoint.GET,
			"/auth/me",
			endpoint.WithTags("Auth"),
			endpoint.WithSummary("Current account"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(User{}, "200", "Account"),
			}),
			endpoint.WithErrors([]response.Response{
				errorResponse("UNAUTHORIZED", "Invalid or missing credentials", "401", "Unauthorized"),
			}),
			bearer,
		),

		// Initialization

		// GET /v1/status
		endpoint.New(
			endpoint.GET,
			"/status",
			endpoint.WithTags("Status"),
			endpoint.WithSummary("Initialization state"),
			endpoint.WithDescription("Reports the initialization lifecycle: idle, loading_provider, building_cache, ready or failed with a reason."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(StatusResponse{}, "200", "Current state"),
			}),
		),

		// POST /v1/admin/cache/rebuild
		endpoint.New(
			endpoint.POST,
			"/admin/cache/rebuild",
			endpoint.WithTags("Admin"),
			endpoint.WithSummary("Rebuild the descriptor cache"),
			endpoint.WithDescription("Recomputes every celebrity descriptor and swaps the snapshot atomically. The previous snapshot keeps serving until the new one is published."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(RebuildResponse{}, "200", "Build report"),
			}),
			endpoint.WithErrors([]response.Response{
				errorResponse("FORBIDDEN", "Access denied", "403", "Forbidden"),
				errorResponse("INVALID_STATE", "Operation not allowed in the current initialization state", "409", "Conflict"),
				errorResponse("EMPTY_CATALOG", "No celebrity could be prepared for matching", "503", "Service Unavailable"),
			}),
			bearer,
		),

		// POST /v1/admin/init/retry
		endpoint.New(
			endpoint.POST,
			"/admin/init/retry",
			endpoint.WithTags("Admin"),
			endpoint.WithSummary("Retry a failed initialization"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(StatusResponse{}, "202", "Initialization restarted"),
			}),
			endpoint.WithErrors([]response.Response{
				errorResponse("FORBIDDEN", "Access denied", "403", "Forbidden"),
				errorResponse("INVALID_STATE", "Operation not allowed in the current initialization state", "409", "Conflict"),
			}),
			bearer,
		),

		// GET /v1/admin/quota/{user_id}
		endpoint.New(
			endpoint.GET,
			"/admin/quota/{user_id}",
			endpoint.WithTags("Admin"),
			endpoint.WithSummary("Inspect a user's hourly match quota"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("user_id", parameter.Path, parameter.WithRequired(), parameter.WithDescription("User id")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(QuotaResponse{}, "200", "Quota usage"),
			}),
			endpoint.WithErrors([]response.Response{
				errorResponse("FORBIDDEN", "Access denied", "403", "Forbidden"),
			}),
			bearer,
		),

		// DELETE /v1/admin/quota/{user_id}
		endpoint.New(
			endpoint.DELETE,
			"/admin/quota/{user_id}",
			endpoint.WithTags("Admin"),
			endpoint.WithSummary("Reset a user's hourly match quota"),
			endpoint.WithParams(
				parameter.StrParam("user_id", parameter.Path, parameter.WithRequired(), parameter.WithDescription("User id")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EmptyResponse{}, "204", "Quota cleared"),
			}),
			endpoint.WithErrors([]response.Response{
				errorResponse("FORBIDDEN", "Access denied", "403", "Forbidden"),
			}),
			bearer,
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
