package gate

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"lingotutor/app/config"

	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	kind     FindingKind
	findings []Finding
	err      error
	delay    time.Duration
	calls    atomic.Int32
}

func (c *fakeChecker) Kind() FindingKind {
	return c.kind
}

func (c *fakeChecker) Check(ctx context.Context, text string) ([]Finding, error) {
	c.calls.Add(1)

	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if c.err != nil {
		return nil, c.err
	}

	return c.findings, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Agent: config.Agent{
			CheckerTimeout: config.Duration(100 * time.Millisecond),
		},
	}
}

func finding(kind FindingKind, start, end int, original string) Finding {
	return Finding{
		Kind:     kind,
		Span:     Span{Start: start, End: end},
		Original: original,
	}
}

func TestAnnotateMergeOrdering(t *testing.T) {
	syntactic := &fakeChecker{
		kind: KindSyntactic,
		findings: []Finding{
			finding(KindSyntactic, 10, 14, "alpha"),
			finding(KindSyntactic, 2, 5, "beta"),
		},
	}
	semantic := &fakeChecker{
		kind: KindSemantic,
		findings: []Finding{
			finding(KindSemantic, 2, 7, "gamma"),
			finding(KindSemantic, 0, 1, "delta"),
		},
	}

	svc := NewService(testConfig(), syntactic, semantic)

	annotation, err := svc.Annotate(context.Background(), "some text with errors")
	require.NoError(t, err)
	require.False(t, annotation.Degraded)
	require.Len(t, annotation.Findings, 4)

	starts := make([]int, 0, 4)
	for _, f := range annotation.Findings {
		starts = append(starts, f.Span.Start)
	}
	require.Equal(t, []int{0, 2, 2, 10}, starts)

	// Syntactic wins at equal span start.
	require.Equal(t, KindSemantic, annotation.Findings[0].Kind)
	require.Equal(t, KindSyntactic, annotation.Findings[1].Kind)
	require.Equal(t, KindSemantic, annotation.Findings[2].Kind)
}

func TestAnnotateDeterministic(t *testing.T) {
	syntactic := &fakeChecker{
		kind:     KindSyntactic,
		findings: []Finding{finding(KindSyntactic, 3, 6, "a")},
	}
	semantic := &fakeChecker{
		kind:     KindSemantic,
		findings: []Finding{finding(KindSemantic, 3, 8, "b")},
	}

	svc := NewService(testConfig(), syntactic, semantic)

	first, err := svc.Annotate(context.Background(), "utterance")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := svc.Annotate(context.Background(), "utterance")
		require.NoError(t, err)
		require.Equal(t, first.Findings, again.Findings)
	}
}

func TestAnnotateEmptyUtterance(t *testing.T) {
	syntactic := &fakeChecker{kind: KindSyntactic}
	semantic := &fakeChecker{kind: KindSemantic}

	svc := NewService(testConfig(), syntactic, semantic)

	for _, utterance := range []string{"", "   ", "\n\t"} {
		annotation, err := svc.Annotate(context.Background(), utterance)
		require.NoError(t, err)
		require.Empty(t, annotation.Findings)
		require.False(t, annotation.Degraded)
	}

	require.Zero(t, syntactic.calls.Load())
	require.Zero(t, semantic.calls.Load())
}

func TestAnnotateFailOpen(t *testing.T) {
	syntactic := &fakeChecker{
		kind: KindSyntactic,
		err:  ErrCheckerUnavailable,
	}
	semantic := &fakeChecker{
		kind:     KindSemantic,
		findings: []Finding{finding(KindSemantic, 0, 4, "kept")},
	}

	svc := NewService(testConfig(), syntactic, semantic)

	annotation, err := svc.Annotate(context.Background(), "some text")
	require.NoError(t, err)
	require.True(t, annotation.Degraded)
	require.Len(t, annotation.Findings, 1)
	require.Equal(t, "kept", annotation.Findings[0].Original)
}

func TestAnnotateBothCheckersFail(t *testing.T) {
	syntactic := &fakeChecker{kind: KindSyntactic, err: ErrCheckerUnavailable}
	semantic := &fakeChecker{kind: KindSemantic, err: ErrCheckerUnavailable}

	svc := NewService(testConfig(), syntactic, semantic)

	annotation, err := svc.Annotate(context.Background(), "some text")
	require.NoError(t, err)
	require.True(t, annotation.Degraded)
	require.Empty(t, annotation.Findings)
}

func TestAnnotateCheckerTimeout(t *testing.T) {
	syntactic := &fakeChecker{
		kind:  KindSyntactic,
		delay: time.Second,
	}
	semantic := &fakeChecker{
		kind:     KindSemantic,
		findings: []Finding{finding(KindSemantic, 0, 4, "fast")},
	}

	svc := NewService(testConfig(), syntactic, semantic)

	annotation, err := svc.Annotate(context.Background(), "some text")
	require.NoError(t, err)
	require.True(t, annotation.Degraded)
	require.Len(t, annotation.Findings, 1)
}

func TestAnnotateCancelled(t *testing.T) {
	syntactic := &fakeChecker{kind: KindSyntactic, delay: time.Second}
	semantic := &fakeChecker{kind: KindSemantic, delay: time.Second}

	svc := NewService(testConfig(), syntactic, semantic)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := svc.Annotate(ctx, "some text")
	require.ErrorIs(t, err, context.Canceled)
}

func TestAnnotateTenseErrorScenario(t *testing.T) {
	utterance := "I have went to the store yesterday"
	start := strings.Index(utterance, "have went")

	syntactic := &fakeChecker{
		kind: KindSyntactic,
		findings: []Finding{
			{
				Kind:        KindSyntactic,
				Span:        Span{Start: start, End: start + len("have went")},
				Original:    "have went",
				Suggestion:  "went",
				Explanation: "The past participle does not follow 'have' here; use the simple past.",
			},
		},
	}
	semantic := &fakeChecker{kind: KindSemantic}

	svc := NewService(testConfig(), syntactic, semantic)

	annotation, err := svc.Annotate(context.Background(), utterance)
	require.NoError(t, err)
	require.False(t, annotation.Degraded)
	require.Len(t, annotation.Findings, 1)
	require.Equal(t, "have went", annotation.Findings[0].Original)
	require.Equal(t, KindSyntactic, annotation.Findings[0].Kind)

	require.Contains(t, annotation.FormatSyntactic(), "have went")
	require.Equal(t, "No additional semantic errors found.", annotation.FormatSemantic())
}

func TestAnnotateKeepsOverlappingFindings(t *testing.T) {
	syntactic := &fakeChecker{
		kind:     KindSyntactic,
		findings: []Finding{finding(KindSyntactic, 5, 9, "same span")},
	}
	semantic := &fakeChecker{
		kind:     KindSemantic,
		findings: []Finding{finding(KindSemantic, 5, 9, "same span")},
	}

	svc := NewService(testConfig(), syntactic, semantic)

	annotation, err := svc.Annotate(context.Background(), "overlap overlap")
	require.NoError(t, err)
	require.Len(t, annotation.Findings, 2)
}
