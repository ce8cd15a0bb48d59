package biometric

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(t *testing.T) Image {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 6))))
	img, err := DecodeImage("data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()))
	require.NoError(t, err)
	return img
}

func TestDecodeImage(t *testing.T) {
	img := testImage(t)
	assert.Equal(t, "png", img.Format)
	assert.Equal(t, 8, img.Width)
	assert.Equal(t, 6, img.Height)
	assert.True(t, strings.HasPrefix(img.DataURL(), "data:image/png;base64,"))

	// bare base64 without a data URL prefix or padding
	raw := base64.RawStdEncoding.EncodeToString(img.Data)
	again, err := DecodeImage(raw)
	require.NoError(t, err)
	assert.Equal(t, img.Data, again.Data)

	for _, bad := range []string{"", "data:image/png;base64,", "%%%", base64.StdEncoding.EncodeToString([]byte("plain text"))} {
		_, err := DecodeImage(bad)
		assert.ErrorIs(t, err, ErrInvalidImage, "input %q", bad)
	}
}

func TestParseTemplate(t *testing.T) {
	emb, err := ParseTemplate("[0.5, -1, 2e-3]")
	require.NoError(t, err)
	assert.Equal(t, Embedding{0.5, -1, 0.002}, emb)

	_, err = ParseTemplate("[]")
	assert.Error(t, err)
	_, err = ParseTemplate("not json")
	assert.Error(t, err)
}

func TestCosineDistance(t *testing.T) {
	d, err := CosineDistance(Embedding{1, 0}, Embedding{2, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0, d, 1e-12)

	d, err = CosineDistance(Embedding{1, 0}, Embedding{0, 3})
	require.NoError(t, err)
	assert.InDelta(t, 1, d, 1e-12)

	d, err = CosineDistance(Embedding{1, 0}, Embedding{-1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 2, d, 1e-12)

	_, err = CosineDistance(Embedding{1}, Embedding{1, 2})
	assert.Error(t, err)
	_, err = CosineDistance(Embedding{0, 0}, Embedding{1, 2})
	assert.Error(t, err)
}

func TestHTTPOracleEmbed(t *testing.T) {
	var got representRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/represent", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"results":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	o := NewHTTPOracle(srv.URL+"/", 0, time.Second)
	img := testImage(t)
	emb, err := o.Embed(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, Embedding{0.1, 0.2, 0.3}, emb)
	assert.Equal(t, "Facenet", got.ModelName)
	assert.Equal(t, img.DataURL(), got.Img)
	assert.Equal(t, DefaultThreshold, o.Threshold)
}

func TestHTTPOracleNoFace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Face could not be detected in numpy array."}`))
	}))
	defer srv.Close()

	_, err := NewHTTPOracle(srv.URL, 0.4, time.Second).Embed(context.Background(), testImage(t))
	require.ErrorIs(t, err, ErrNoSubject)
}

func TestHTTPOracleFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))

	_, err := NewHTTPOracle(srv.URL, 0.4, time.Second).Embed(context.Background(), testImage(t))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSubject)

	// unreachable oracle
	srv.Close()
	_, err = NewHTTPOracle(srv.URL, 0.4, time.Second).Embed(context.Background(), testImage(t))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSubject)
}

func TestHTTPOracleMatch(t *testing.T) {
	o := NewHTTPOracle("http://unused", 0.4, time.Second)
	ok, err := o.Match(Embedding{1, 0, 0}, Embedding{0.95, 0.05, 0})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = o.Match(Embedding{1, 0, 0}, Embedding{0.2, 1, 0})
	require.NoError(t, err)
	assert.False(t, ok)
}
