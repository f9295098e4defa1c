package deepface

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/provider"
)

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func embedding(v float64) []float64 {
	e := make([]float64, 128)
	for i := range e {
		e[i] = v
	}
	return e
}

func representServer(t *testing.T, resp RepresentResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			_, _ = w.Write([]byte("ok"))
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestProvider_DetectDescriptor(t *testing.T) {
	opts := provider.DetectorOptions{MinConfidence: 0.5, InputSize: 320}

	tests := []struct {
		name    string
		results []RepresentResult
		width   int
		height  int
		want    float64
		wantErr error
	}{
		{
			name: "single confident face",
			results: []RepresentResult{
				{Embedding: embedding(0.1), FacialArea: FacialArea{W: 200, H: 200}, FaceConfidence: 0.9},
			},
			width: 640, height: 480,
			want: 0.1,
		},
		{
			name: "largest confident face is chosen",
			results: []RepresentResult{
				{Embedding: embedding(0.1), FacialArea: FacialArea{W: 100, H: 100}, FaceConfidence: 0.99},
				{Embedding: embedding(0.2), FacialArea: FacialArea{W: 300, H: 300}, FaceConfidence: 0.8},
				{Embedding: embedding(0.3), FacialArea: FacialArea{W: 400, H: 400}, FaceConfidence: 0.2},
			},
			width: 1000, height: 800,
			want: 0.2,
		},
		{
			name:    "no results",
			results: nil,
			width:   640, height: 480,
			wantErr: provider.ErrNoFace,
		},
		{
			name: "low confidence only",
			results: []RepresentResult{
				{Embedding: embedding(0.1), FacialArea: FacialArea{W: 200, H: 200}, FaceConfidence: 0.3},
			},
			width: 640, height: 480,
			wantErr: provider.ErrNoFace,
		},
		{
			name: "face too small at input resolution",
			results: []RepresentResult{
				// 40px in a 1000px image is 12.8px at 320
				{Embedding: embedding(0.1), FacialArea: FacialArea{W: 40, H: 40}, FaceConfidence: 0.95},
			},
			width: 1000, height: 500,
			wantErr: provider.ErrNoFace,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := representServer(t, RepresentResponse{Results: tt.results})
			defer server.Close()

			p := NewProvider(testConfig(server.URL), opts, nil)
			got, err := p.DetectDescriptor(context.Background(), pngImage(t, tt.width, tt.height))

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, got, 128)
			assert.InDelta(t, tt.want, got[0], 1e-9)
		})
	}
}

func TestProvider_DetectDescriptor_InvalidImage(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	p := NewProvider(testConfig(server.URL), provider.DefaultDetectorOptions(), nil)
	_, err := p.DetectDescriptor(context.Background(), []byte("definitely not an image"))

	assert.ErrorIs(t, err, provider.ErrDetection)
	assert.ErrorIs(t, err, provider.ErrInvalidImage)
	assert.Zero(t, calls.Load())
}

func TestProvider_DetectDescriptor_ServiceDown(t *testing.T) {
	noBackoff(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	p := NewProvider(testConfig(server.URL), provider.DefaultDetectorOptions(), nil)
	_, err := p.DetectDescriptor(context.Background(), pngImage(t, 10, 10))

	assert.ErrorIs(t, err, provider.ErrDetection)
	assert.NotErrorIs(t, err, provider.ErrNoFace)
}

func TestProvider_Initialize(t *testing.T) {
	noBackoff(t)

	t.Run("only first success reaches the service", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}))
		defer server.Close()

		p := NewProvider(testConfig(server.URL), provider.DefaultDetectorOptions(), nil)
		require.NoError(t, p.Initialize(context.Background()))
		require.NoError(t, p.Initialize(context.Background()))
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("failure does not latch", func(t *testing.T) {
		var healthy atomic.Bool
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !healthy.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		}))
		defer server.Close()

		p := NewProvider(testConfig(server.URL), provider.DefaultDetectorOptions(), nil)
		err := p.Initialize(context.Background())
		assert.ErrorIs(t, err, provider.ErrModelLoad)

		healthy.Store(true)
		assert.NoError(t, p.Initialize(context.Background()))
	})
}

func TestDataURI(t *testing.T) {
	uri := dataURI(pngImage(t, 2, 2))
	assert.Contains(t, uri, "data:image/png;base64,")
}

// webpImage returns a lossless WebP container whose header declares w x h.
// Only the header is filled in, which is all DecodeConfig reads.
func webpImage(w, h int) []byte {
	bits := uint32(w-1) | uint32(h-1)<<14
	payload := []byte{0x2f, byte(bits), byte(bits >> 8), byte(bits >> 16), byte(bits >> 24), 0, 0, 0}

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(4+8+len(payload)))
	buf.WriteString("WEBPVP8L")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(payload)))
	buf.Write(payload)
	return buf.Bytes()
}

func TestProvider_DetectDescriptor_WebP(t *testing.T) {
	var sentImage atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RepresentRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		sentImage.Store(req.Img)
		_ = json.NewEncoder(w).Encode(RepresentResponse{Results: []RepresentResult{
			{Embedding: embedding(0.4), FacialArea: FacialArea{W: 200, H: 200}, FaceConfidence: 0.9},
		}})
	}))
	defer server.Close()

	p := NewProvider(testConfig(server.URL), provider.DetectorOptions{MinConfidence: 0.5, InputSize: 320}, nil)
	got, err := p.DetectDescriptor(context.Background(), webpImage(640, 480))

	require.NoError(t, err)
	require.Len(t, got, 128)
	assert.InDelta(t, 0.4, got[0], 1e-9)
	assert.Contains(t, sentImage.Load(), "data:image/webp;base64,")
}

func TestProvider_Fingerprint(t *testing.T) {
	cfg := testConfig("http://localhost:5000")
	facenet := NewProvider(cfg, provider.DefaultDetectorOptions(), nil)

	cfg.Detector = "retinaface"
	retina := NewProvider(cfg, provider.DefaultDetectorOptions(), nil)

	assert.Equal(t, "deepface/Facenet/opencv", provider.FingerprintOf(facenet))
	assert.NotEqual(t, provider.FingerprintOf(facenet), provider.FingerprintOf(retina))
}
