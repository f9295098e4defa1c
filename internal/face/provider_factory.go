package face

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/config"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/provider"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/provider/deepface"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/provider/rekognition"
)

// ProviderType defines supported descriptor provider types
type ProviderType string

const (
	// ProviderTypeDeepFace is the DeepFace HTTP provider
	ProviderTypeDeepFace ProviderType = "deepface"
	// ProviderTypeMock derives descriptors from image hashes, for dev/test
	ProviderTypeMock ProviderType = "mock"
)

// GateType defines supported face gates
type GateType string

const (
	GateNone        GateType = ""
	GateRekognition GateType = "rekognition"
)

// NewDescriptorProvider creates the provider chain described by configuration
//
// Environment variables:
//   - PROVIDER_TYPE: "deepface" or "mock" (default: "deepface")
//   - DEEPFACE_URL, DEEPFACE_MODEL, DEEPFACE_DETECTOR, DEEPFACE_TIMEOUT
//   - MIN_CONFIDENCE, INPUT_SIZE: detector thresholds
//   - FACE_GATE: "rekognition" puts AWS Rekognition DetectFaces in front of the provider
//   - AWS_REGION plus the AWS SDK credential chain when the gate is enabled
func NewDescriptorProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (provider.DescriptorProvider, error) {
	opts := provider.DetectorOptions{
		MinConfidence: cfg.MinConfidence,
		InputSize:     cfg.InputSize,
	}

	var base provider.DescriptorProvider
	switch ProviderType(cfg.ProviderType) {
	case ProviderTypeDeepFace, "":
		base = createDeepFaceProvider(cfg, opts, logger)
	case ProviderTypeMock:
		base = mock.New()
	default:
		return nil, fmt.Errorf("unknown provider type: %s (supported: %s, %s)",
			cfg.ProviderType, ProviderTypeDeepFace, ProviderTypeMock)
	}

	switch GateType(cfg.FaceGate) {
	case GateNone:
		return base, nil
	case GateRekognition:
		detector, err := rekognition.NewDetector(ctx, rekognition.Config{Region: cfg.AWSRegion})
		if err != nil {
			return nil, fmt.Errorf("create rekognition gate: %w", err)
		}
		return provider.NewGatedProvider(detector, base, opts), nil
	default:
		return nil, fmt.Errorf("unknown face gate: %s (supported: %s)", cfg.FaceGate, GateRekognition)
	}
}

// createDeepFaceProvider creates a DeepFace provider instance
func createDeepFaceProvider(cfg *config.Config, opts provider.DetectorOptions, logger *slog.Logger) *deepface.Provider {
	deepfaceConfig := deepface.DefaultConfig()
	if cfg.DeepFaceURL != "" {
		deepfaceConfig.BaseURL = cfg.DeepFaceURL
	}
	if cfg.DeepFaceModel != "" {
		deepfaceConfig.Model = cfg.DeepFaceModel
	}
	if cfg.DeepFaceDetector != "" {
		deepfaceConfig.Detector = cfg.DeepFaceDetector
	}
	if cfg.DeepFaceTimeout > 0 {
		deepfaceConfig.Timeout = cfg.DeepFaceTimeout
	}

	return deepface.NewProvider(deepfaceConfig, opts, logger)
}
