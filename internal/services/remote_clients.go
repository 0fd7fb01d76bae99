package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"quizinsight/internal/config"
	"quizinsight/internal/models"
	"quizinsight/internal/observability"
	"quizinsight/internal/serviceinterfaces"
	contextutils "quizinsight/internal/utils"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// newInstrumentedClient returns an http.Client whose requests carry trace context
func newInstrumentedClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = config.DefaultHTTPTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanOptions(trace.WithSpanKind(trace.SpanKindClient)),
		),
	}
}

// getJSON issues a GET and decodes a 200 response into out. 404 maps to
// RECORD_NOT_FOUND and 5xx to SERVICE_UNAVAILABLE.
func getJSON(ctx context.Context, client *http.Client, endpoint, what string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to build request for %s", what)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "request for %s failed: %v", what, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return contextutils.NotFoundf("%s", what)
	case resp.StatusCode >= 500:
		return contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "%s: upstream returned %d", what, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return contextutils.ErrorWithContextf("%s: unexpected status %d: %s", what, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return contextutils.WrapErrorf(err, "failed to decode %s", what)
	}
	return nil
}

// HTTPQuizCatalog resolves quiz metadata from the content service
type HTTPQuizCatalog struct {
	baseURL string
	client  *http.Client
}

var _ serviceinterfaces.QuizCatalog = (*HTTPQuizCatalog)(nil)

// NewHTTPQuizCatalog creates a catalog client for cfg.BaseURL
func NewHTTPQuizCatalog(cfg config.RemoteConfig) *HTTPQuizCatalog {
	return &HTTPQuizCatalog{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  newInstrumentedClient(cfg.Timeout),
	}
}

type quizMetadataResponse struct {
	Kind       string `json:"kind"`
	Topic      string `json:"topic"`
	Tense      string `json:"tense"`
	Difficulty string `json:"difficulty"`
}

// GetQuizMetadata fetches GET {base}/v1/quizzes/{id}/metadata
func (c *HTTPQuizCatalog) GetQuizMetadata(ctx context.Context, quizID int) (result0 *models.QuizMetadata, err error) {
	ctx, span := observability.TraceClientFunction(ctx, "get_quiz_metadata", observability.AttributeQuizID(quizID))
	defer observability.FinishSpan(span, &err)

	var body quizMetadataResponse
	endpoint := fmt.Sprintf("%s/v1/quizzes/%d/metadata", c.baseURL, quizID)
	if err := getJSON(ctx, c.client, endpoint, fmt.Sprintf("quiz %d", quizID), &body); err != nil {
		return nil, err
	}

	// An unknown difficulty is not fatal; classification does not depend on it.
	tier, _ := models.ParseDifficultyTier(body.Difficulty)
	return &models.QuizMetadata{
		QuizID:     quizID,
		Kind:       models.ParseContentKind(body.Kind),
		Topic:      body.Topic,
		Tense:      body.Tense,
		Difficulty: tier,
	}, nil
}

// HTTPRanking asks the leaderboard service for a user's rank
type HTTPRanking struct {
	baseURL string
	client  *http.Client
}

var _ serviceinterfaces.Ranking = (*HTTPRanking)(nil)

// NewHTTPRanking creates a leaderboard client for cfg.BaseURL
func NewHTTPRanking(cfg config.RemoteConfig) *HTTPRanking {
	return &HTTPRanking{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  newInstrumentedClient(cfg.Timeout),
	}
}

type rankResponse struct {
	Rank int `json:"rank"`
}

// RankFor fetches GET {base}/v1/leaderboard/rank?user_id=&points=
func (r *HTTPRanking) RankFor(ctx context.Context, userID, points int) (result0 int, err error) {
	ctx, span := observability.TraceClientFunction(ctx, "rank_for",
		observability.AttributeUserID(userID), attribute.Int("points", points))
	defer observability.FinishSpan(span, &err)

	q := url.Values{}
	q.Set("user_id", strconv.Itoa(userID))
	q.Set("points", strconv.Itoa(points))

	var body rankResponse
	if err := getJSON(ctx, r.client, r.baseURL+"/v1/leaderboard/rank?"+q.Encode(), fmt.Sprintf("rank of user %d", userID), &body); err != nil {
		return 0, err
	}
	if body.Rank < 1 {
		return 0, contextutils.WrapErrorf(contextutils.ErrInconsistency, "leaderboard returned rank %d for user %d", body.Rank, userID)
	}
	return body.Rank, nil
}
