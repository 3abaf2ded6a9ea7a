package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/danielolaszy/tasklane/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompleter returns a canned reply and records what it was sent.
type fakeCompleter struct {
	reply    string
	err      error
	calls    int
	lastUser string
	block    bool
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	f.calls++
	f.lastUser = user
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

func newTestExtractor(c Completer) *Extractor {
	e := New(c, Options{ProjectID: "1", MaxInputLength: 4000, Timeout: time.Second, Location: time.UTC})
	e.now = func() time.Time { return time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC) }
	return e
}

func TestExtractDegradesToDefaults(t *testing.T) {
	inputs := []string{
		"fix the printer on the third floor",
		"買い物リストを整理する",
		"   leading and trailing space   ",
	}
	completers := map[string]*fakeCompleter{
		"backend error": {err: errors.New("connection refused")},
		"not json":      {reply: "Sure! I created a ticket for you."},
		"broken json":   {reply: `{"subject": "unterminated`},
	}

	for name, completer := range completers {
		for _, input := range inputs {
			t.Run(name+"/"+input, func(t *testing.T) {
				result := newTestExtractor(completer).Extract(context.Background(), input)

				require.Error(t, result.Degraded)
				assert.Equal(t, models.PriorityNormal, result.Draft.Priority)
				assert.Equal(t, input, result.Draft.Description, "description is the verbatim input")
				assert.Nil(t, result.Draft.DueDate)
				assert.NotEmpty(t, result.Draft.Subject)
				assert.Equal(t, "1", result.Draft.ProjectID)
			})
		}
	}
}

func TestExtractBackendErrorIsReported(t *testing.T) {
	result := newTestExtractor(&fakeCompleter{err: errors.New("boom")}).Extract(context.Background(), "anything")
	assert.ErrorIs(t, result.Degraded, ErrBackendUnavailable)

	result = newTestExtractor(&fakeCompleter{reply: "no braces here"}).Extract(context.Background(), "anything")
	assert.ErrorIs(t, result.Degraded, ErrUnparseable)

	result = New(nil, Options{ProjectID: "1"}).Extract(context.Background(), "anything")
	assert.ErrorIs(t, result.Degraded, ErrBackendUnavailable)
}

func TestExtractTimeoutDegrades(t *testing.T) {
	completer := &fakeCompleter{block: true}
	e := newTestExtractor(completer)
	e.timeout = 20 * time.Millisecond

	result := e.Extract(context.Background(), "check the backups")
	assert.ErrorIs(t, result.Degraded, ErrBackendUnavailable)
	assert.Equal(t, "check the backups", result.Draft.Description)
}

func TestExtractUsesBackendFields(t *testing.T) {
	completer := &fakeCompleter{reply: "```json\n" + `{
		"subject": "Replace office router",
		"description": "The router in room 3 drops connections.",
		"priority": "Low",
		"due_date": "2026-10-30",
		"assignee": "Suzuki"
	}` + "\n```"}

	result := newTestExtractor(completer).Extract(context.Background(), "the router in room 3 keeps dropping, Suzuki can replace it by end of month")

	require.NoError(t, result.Degraded)
	assert.Equal(t, "Replace office router", result.Draft.Subject)
	assert.Equal(t, "The router in room 3 drops connections.", result.Draft.Description)
	assert.Equal(t, models.PriorityLow, result.Draft.Priority)
	assert.Equal(t, "Suzuki", result.Draft.AssigneeHint)
	assert.Equal(t, "2026-10-30", result.Draft.DueDateString())
	assert.Contains(t, completer.lastUser, "Today is 2026-10-16")
}

func TestExtractMalformedFieldsFallBackIndividually(t *testing.T) {
	completer := &fakeCompleter{reply: `{"subject": "Order toner", "priority": 3, "due_date": "next week", "description": ""}`}
	input := "order toner for the printer"

	result := newTestExtractor(completer).Extract(context.Background(), input)

	require.NoError(t, result.Degraded)
	assert.Equal(t, "Order toner", result.Draft.Subject)
	assert.Equal(t, models.PriorityNormal, result.Draft.Priority)
	assert.Nil(t, result.Draft.DueDate)
	assert.Equal(t, input, result.Draft.Description)
}

func TestExtractHighPriorityScenario(t *testing.T) {
	input := "Create a high-priority task for server maintenance"
	completers := map[string]Completer{
		"backend down":   &fakeCompleter{err: errors.New("unreachable")},
		"backend normal": &fakeCompleter{reply: `{"subject":"Server maintenance","priority":"Normal"}`},
		"backend high":   &fakeCompleter{reply: `{"subject":"Server maintenance","priority":"High"}`},
	}

	for name, completer := range completers {
		t.Run(name, func(t *testing.T) {
			result := newTestExtractor(completer).Extract(context.Background(), input)
			assert.GreaterOrEqual(t, result.Draft.Priority, models.PriorityHigh)
			assert.NotEmpty(t, result.Draft.Subject)
			assert.Equal(t, "1", result.Draft.ProjectID)
		})
	}
}

func TestInferPriorityNeverBelowBaseline(t *testing.T) {
	urgentInputs := []string{
		"URGENT: the database is down",
		"please fix this immediately",
		"critical bug in checkout",
		"need this asap",
		"至急、見積書を送ってください",
		"緊急対応が必要です",
		"急いでレポートをまとめて",
	}
	suggestions := []string{"Low", "Normal", "High", "Urgent", "critical", "garbage"}

	for _, input := range urgentInputs {
		for _, suggestion := range suggestions {
			s := suggestion
			baseline, ok := models.ParsePriority(s)
			if !ok {
				baseline = models.PriorityNormal
			}

			got := inferPriority(input, &s)
			assert.GreaterOrEqual(t, got, baseline, "%q with %q", input, s)
			assert.LessOrEqual(t, got, models.PriorityUrgent)
			if baseline < models.PriorityUrgent {
				assert.Equal(t, baseline+1, got, "%q with %q raises one level", input, s)
			}
		}
	}
}

func TestInferPriorityWithoutKeywords(t *testing.T) {
	low := "Low"
	assert.Equal(t, models.PriorityLow, inferPriority("tidy the shelves", &low))
	assert.Equal(t, models.PriorityNormal, inferPriority("tidy the shelves", nil))

	critical := "critical"
	assert.Equal(t, models.PriorityHigh, inferPriority("tidy the shelves", &critical), "keyword in the suggestion counts")
}

func TestExtractTruncatesLongInput(t *testing.T) {
	completer := &fakeCompleter{reply: `{"subject":"Long request"}`}
	e := newTestExtractor(completer)
	e.maxInputLength = 50

	input := strings.Repeat("あ", 200)
	result := e.Extract(context.Background(), input)

	assert.True(t, result.Truncated)
	assert.NotContains(t, completer.lastUser, strings.Repeat("あ", 51))
	assert.Contains(t, completer.lastUser, strings.Repeat("あ", 50))
	assert.Equal(t, input, result.Draft.Description, "the draft keeps the full text")
}

func TestSubjectFromRawText(t *testing.T) {
	assert.Equal(t, "first line", subjectFrom("\n\n  first line  \nsecond line"))
	assert.Equal(t, "Untitled request", subjectFrom("   "))

	long := subjectFrom(strings.Repeat("x", 200))
	assert.Equal(t, maxSubjectRunes, len([]rune(long)))
	assert.True(t, strings.HasSuffix(long, "..."))
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "2026-10-30", want: "2026-10-30"},
		{input: "2026/10/30", want: "2026-10-30"},
		{input: "2026-10-30T15:00:00+09:00", want: "2026-10-30"},
		{input: "tomorrow", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseDate(tt.input)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Format(models.DateLayout))
		})
	}
}
