package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tetuya0525/dialogue-index-builder/internal/models"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"golang.org/x/time/rate"
)

// OpenAIAnalyzer derives daily aggregates with the OpenAI Responses API using
// strict structured output. It fills the same seam as PlaceholderAnalyzer; a
// failure for one date surfaces as that date's error only, never aborting the
// run. Calls are throttled client-side so a rebuild over months of history
// stays within the account rate limit.
type OpenAIAnalyzer struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
}

// NewOpenAIAnalyzer creates an OpenAI-backed analyzer. requestsPerMinute caps
// the per-date analysis calls issued during one rebuild.
func NewOpenAIAnalyzer(apiKey, model string, requestsPerMinute int) *OpenAIAnalyzer {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 30
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIAnalyzer{
		client:  &client,
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1),
	}
}

// analyzedKeyMoment mirrors models.KeyMoment for the structured-output schema
type analyzedKeyMoment struct {
	Topic        string `json:"topic" jsonschema:"required" jsonschema_description:"One-line topic of the notable moment"`
	Timestamp    string `json:"timestamp" jsonschema:"required" jsonschema_description:"HH:MM local (JST) time of the moment"`
	ArticleID    string `json:"articleId" jsonschema:"required" jsonschema_description:"ID of the source dialogue log, copied verbatim from the transcript digest"`
	ArticleTitle string `json:"articleTitle" jsonschema:"required" jsonschema_description:"Title of the source dialogue log"`
}

type analyzedChunk struct {
	StartTime    string              `json:"startTime" jsonschema:"required" jsonschema_description:"HH:MM JST start of the chunk"`
	EndTime      string              `json:"endTime" jsonschema:"required" jsonschema_description:"HH:MM JST end of the chunk, after startTime"`
	ChunkSummary string              `json:"chunkSummary" jsonschema:"required"`
	Categories   []string            `json:"categories" jsonschema:"required"`
	Tags         []string            `json:"tags" jsonschema:"required"`
	KeyMoments   []analyzedKeyMoment `json:"keyMoments" jsonschema:"required"`
}

type analyzeResponse struct {
	DailySummary string          `json:"dailySummary" jsonschema:"required" jsonschema_description:"2-3 sentence Japanese summary of the day's conversations"`
	TimeChunks   []analyzedChunk `json:"timeChunks" jsonschema:"required"`
}

var analyzeSchema = generateSchema[analyzeResponse]()

const dailyAnalyzerPrompt = `You are an archival conversation indexing assistant.
You receive a digest of one calendar day's dialogue logs (JST). Produce a concise
Japanese daily summary and split the day into non-overlapping time chunks. Each
chunk gets a short summary, category labels, topic tags, and the key moments
worth jumping back to. Key moments must reference articleId values copied
verbatim from the digest. Output JSON only, matching the provided schema.`

// Analyze derives one day's aggregate from its dialogue logs
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, date string, logs []models.DialogueLog) (models.DailyAggregate, error) {
	if len(logs) == 0 {
		return models.DailyAggregate{}, fmt.Errorf("no dialogue logs for %s", date)
	}
	if a.client == nil {
		return models.DailyAggregate{}, errors.New("openai analyzer: client is nil")
	}
	if a.model == "" {
		return models.DailyAggregate{}, errors.New("openai analyzer: model is empty")
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return models.DailyAggregate{}, fmt.Errorf("rate limiter interrupted: %w", err)
	}

	format := responses.ResponseFormatTextConfigUnionParam{
		OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
			Name:        "DailyIndex",
			Schema:      analyzeSchema,
			Strict:      openai.Bool(true),
			Description: openai.String("Daily dialogue index JSON"),
			Type:        "json_schema",
		},
	}

	params := responses.ResponseNewParams{
		Model:           a.model,
		MaxOutputTokens: openai.Int(2500),
		Instructions:    openai.String(dailyAnalyzerPrompt),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(buildDayDigest(date, logs), responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: format,
		},
	}

	resp, err := a.callWithRetry(ctx, params)
	if err != nil {
		return models.DailyAggregate{}, fmt.Errorf("failed to analyze %s: %w", date, err)
	}

	var out analyzeResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp.OutputText())), &out); err != nil {
		return models.DailyAggregate{}, fmt.Errorf("failed to unmarshal analysis for %s: %w", date, err)
	}

	return toDailyAggregate(out, logs), nil
}

// buildDayDigest renders the prompt input: one line per log with its ID, JST
// time and title, plus the date header.
func buildDayDigest(date string, logs []models.DialogueLog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s (JST)\nDialogue logs (%d):\n", date, len(logs))
	for _, dialogueLog := range logs {
		title := dialogueLog.Title
		if title == "" {
			title = untitledDialogueLog
		}
		timestamp := ""
		if dialogueLog.CreatedAt != nil {
			timestamp = dialogueLog.CreatedAt.In(jst).Format("15:04")
		}
		fmt.Fprintf(&b, "- articleId=%s time=%s title=%s\n", dialogueLog.ID, timestamp, title)
	}
	return b.String()
}

// toDailyAggregate maps the model output into the storage shape, backfilling
// missing key-moment references with the day's first log so the stored index
// never points at nothing.
func toDailyAggregate(out analyzeResponse, logs []models.DialogueLog) models.DailyAggregate {
	first := logs[0]
	firstTitle := first.Title
	if firstTitle == "" {
		firstTitle = untitledDialogueLog
	}

	knownIDs := make(map[string]bool, len(logs))
	for _, dialogueLog := range logs {
		knownIDs[dialogueLog.ID] = true
	}

	chunks := make([]models.TimeChunk, 0, len(out.TimeChunks))
	for _, c := range out.TimeChunks {
		moments := make([]models.KeyMoment, 0, len(c.KeyMoments))
		for _, m := range c.KeyMoments {
			articleID := m.ArticleID
			articleTitle := m.ArticleTitle
			if !knownIDs[articleID] {
				articleID = first.ID
				articleTitle = firstTitle
			}
			moments = append(moments, models.KeyMoment{
				Topic:        m.Topic,
				Timestamp:    m.Timestamp,
				ArticleID:    articleID,
				ArticleTitle: articleTitle,
			})
		}
		chunks = append(chunks, models.TimeChunk{
			StartTime:    c.StartTime,
			EndTime:      c.EndTime,
			ChunkSummary: c.ChunkSummary,
			Categories:   c.Categories,
			Tags:         c.Tags,
			KeyMoments:   moments,
		})
	}

	return models.DailyAggregate{
		DailySummary: strings.TrimSpace(out.DailySummary),
		TimeChunks:   chunks,
	}
}

// callWithRetry retries transient OpenAI failures before giving up on a date
func (a *OpenAIAnalyzer) callWithRetry(ctx context.Context, params responses.ResponseNewParams) (*responses.Response, error) {
	const maxRetries = 3
	rateLimitWaitTimes := []time.Duration{65 * time.Second, 100 * time.Second, 135 * time.Second}
	serverErrorWaitTimes := []time.Duration{5 * time.Second, 30 * time.Second, 60 * time.Second}

	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err := a.client.Responses.New(ctx, params)
		if err != nil {
			if isRateLimitError(err) {
				if attempt < maxRetries-1 {
					time.Sleep(rateLimitWaitTimes[attempt])
					continue
				}
			} else if isServerError(err) {
				if attempt < maxRetries-1 {
					time.Sleep(serverErrorWaitTimes[attempt])
					continue
				}
			}
			return nil, err
		}
		return resp, nil
	}
	return nil, fmt.Errorf("failed after %d attempts due to OpenAI API issues", maxRetries)
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

func isServerError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "server_error")
}

// generateSchema reflects a strict JSON schema for structured output
func generateSchema[T any]() map[string]interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)

	b, err := schema.MarshalJSON()
	if err != nil {
		panic(err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		panic(err)
	}
	return m
}
