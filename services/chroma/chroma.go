package chromasvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/kymoni/elimu/core"
	"github.com/kymoni/elimu/core/chat"
)

// Client stores and queries knowledge base documents in ChromaDB over its
// REST API.
type Client struct {
	baseURL    string
	collection string
	hc         *http.Client

	mu           sync.Mutex
	collectionID string
}

var _ chat.Retriever = (*Client)(nil)

func NewClient(conf *core.Config) *Client {
	return &Client{
		baseURL:    conf.AI.ChromaURL,
		collection: conf.AI.ChromaCollection,
		hc:         &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) AddDocument(ctx context.Context, doc chat.Document, embedding []float32) error {
	collID, err := c.ensureCollection(ctx)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"ids":        []string{doc.ID},
		"embeddings": [][]float32{embedding},
		"documents":  []string{doc.Content},
		"metadatas": []map[string]interface{}{{
			"subject":     doc.Subject,
			"topic":       doc.Topic,
			"grade_level": doc.GradeLevel,
		}},
	}
	return c.post(ctx, fmt.Sprintf("/api/v1/collections/%s/add", collID), payload, nil)
}

func (c *Client) Query(ctx context.Context, embedding []float32, subject string, limit int) ([]chat.Document, error) {
	collID, err := c.ensureCollection(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"query_embeddings": [][]float32{embedding},
		"n_results":        limit,
		"include":          []string{"documents", "metadatas"},
	}
	if subject != "" {
		payload["where"] = map[string]interface{}{"subject": map[string]interface{}{"$eq": subject}}
	}

	var res struct {
		IDs       [][]string                 `json:"ids"`
		Documents [][]string                 `json:"documents"`
		Metadatas [][]map[string]interface{} `json:"metadatas"`
	}
	if err = c.post(ctx, fmt.Sprintf("/api/v1/collections/%s/query", collID), payload, &res); err != nil {
		return nil, err
	}
	if len(res.IDs) == 0 {
		return nil, nil
	}

	docs := make([]chat.Document, 0, len(res.IDs[0]))
	for i, id := range res.IDs[0] {
		doc := chat.Document{ID: id}
		if len(res.Documents) > 0 && i < len(res.Documents[0]) {
			doc.Content = res.Documents[0][i]
		}
		if len(res.Metadatas) > 0 && i < len(res.Metadatas[0]) {
			meta := res.Metadatas[0][i]
			doc.Subject, _ = meta["subject"].(string)
			doc.Topic, _ = meta["topic"].(string)
			doc.GradeLevel, _ = meta["grade_level"].(string)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// ensureCollection resolves (creating if needed) the collection ID once and
// caches it for the life of the client.
func (c *Client) ensureCollection(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.collectionID != "" {
		return c.collectionID, nil
	}

	payload := map[string]interface{}{
		"name":          c.collection,
		"get_or_create": true,
	}
	var res struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/api/v1/collections", payload, &res); err != nil {
		return "", errors.Wrap(err, "ensuring collection")
	}
	if res.ID == "" {
		return "", errors.New("collection create reply missing id")
	}
	c.collectionID = res.ID
	return c.collectionID, nil
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
	if out != nil {
		if err = json.NewDecoder(res.Body).Decode(out); err != nil {
			return errors.Wrap(err, "decoding response")
		}
	}
	return nil
}
