package facerecsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/kymoni/elimu/core"
	"github.com/kymoni/elimu/core/attendance"
	"github.com/kymoni/elimu/core/student"
)

// EmbeddingStore persists face embeddings where the recognition service can
// compare against them.
type EmbeddingStore interface {
	SaveFaceEmbedding(ctx context.Context, studentCode string, embedding []float64) error
}

// Client talks to the face recognition service: /encode turns a portrait into
// an embedding (stored per student), /recognize matches faces in a classroom
// photo against the stored embeddings.
type Client struct {
	baseURL string
	hc      *http.Client
	store   EmbeddingStore
}

var (
	_ student.FaceIndexer   = (*Client)(nil)
	_ attendance.Recognizer = (*Client)(nil)
)

func NewClient(conf *core.Config, store EmbeddingStore) *Client {
	return &Client{
		baseURL: conf.AI.FaceRecognitionURL,
		// face detection on large photos is slow
		hc:    &http.Client{Timeout: 60 * time.Second},
		store: store,
	}
}

func (c *Client) RegisterFace(ctx context.Context, studentCode, photoURL string) error {
	var res struct {
		Status    string    `json:"status"`
		Embedding []float64 `json:"embedding"`
	}
	if err := c.post(ctx, "/encode", map[string]string{"image_url": photoURL}, &res); err != nil {
		return err
	}
	if len(res.Embedding) == 0 {
		return errors.New("encode reply missing embedding")
	}
	return errors.Wrap(c.store.SaveFaceEmbedding(ctx, studentCode, res.Embedding), "storing embedding")
}

func (c *Client) Identify(ctx context.Context, photoURL string) ([]attendance.Match, error) {
	var res struct {
		Status             string   `json:"status"`
		RecognizedStudents []string `json:"recognized_students"`
		Count              int      `json:"count"`
	}
	if err := c.post(ctx, "/recognize", map[string]string{"image_url": photoURL}, &res); err != nil {
		return nil, err
	}

	matches := make([]attendance.Match, 0, len(res.RecognizedStudents))
	for _, code := range res.RecognizedStudents {
		// the service thresholds matches internally and reports no distance
		matches = append(matches, attendance.Match{StudentCode: code, Confidence: 1})
	}
	return matches, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encoding request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		return errors.Wrapf(err, "POST %s", path)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		b, _ := io.ReadAll(res.Body)
		return errors.Errorf("POST %s - status: %d - Body: %s", path, res.StatusCode, b)
	}
	return errors.Wrap(json.NewDecoder(res.Body).Decode(out), "decoding response")
}
