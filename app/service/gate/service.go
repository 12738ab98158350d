package gate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"lingotutor/app/client/languagetool"
	"lingotutor/app/config"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

// Checker runs one analysis pass over an utterance.
type Checker interface {
	Kind() FindingKind
	Check(ctx context.Context, text string) ([]Finding, error)
}

// Service fans the utterance out to the syntactic and semantic checkers and
// merges their findings into one Annotation.
type Service struct {
	cfg       *config.Config
	syntactic Checker
	semantic  Checker
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	ltClient := do.MustInvoke[*languagetool.Client](di)

	return NewService(cfg, NewSyntacticChecker(ltClient), NewSemanticChecker(cfg)), nil
}

func NewService(cfg *config.Config, syntactic, semantic Checker) *Service {
	return &Service{
		cfg:       cfg,
		syntactic: syntactic,
		semantic:  semantic,
	}
}

// Annotate runs both checkers concurrently and joins their findings.
// A failing checker never blocks the turn: its findings are skipped and the
// annotation is marked degraded.
func (s *Service) Annotate(ctx context.Context, utterance string) (*Annotation, error) {
	annotation := &Annotation{
		Utterance: utterance,
	}

	if strings.TrimSpace(utterance) == "" {
		return annotation, nil
	}

	var syntacticFindings, semanticFindings []Finding
	var syntacticErr, semanticErr error

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		syntacticFindings, syntacticErr = s.runChecker(groupCtx, s.syntactic, utterance)
		return nil
	})

	g.Go(func() error {
		semanticFindings, semanticErr = s.runChecker(groupCtx, s.semantic, utterance)
		return nil
	})

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	annotation.Degraded = syntacticErr != nil || semanticErr != nil
	annotation.Findings = mergeFindings(syntacticFindings, semanticFindings)

	return annotation, nil
}

func (s *Service) runChecker(ctx context.Context, checker Checker, utterance string) ([]Finding, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Agent.CheckerTimeout.Std())
	defer cancel()

	findings, err := checker.Check(ctx, utterance)
	if err != nil {
		slog.Warn("Checker failed, proceeding without it",
			"kind", checker.Kind(),
			"error", err,
		)

		return nil, fmt.Errorf("%w: %s: %v", ErrCheckerUnavailable, checker.Kind(), err)
	}

	return findings, nil
}

// mergeFindings concatenates both checkers' findings and orders them by
// span start, syntactic before semantic at equal offsets. Overlapping
// findings are deliberately kept.
func mergeFindings(syntactic, semantic []Finding) []Finding {
	merged := make([]Finding, 0, len(syntactic)+len(semantic))
	merged = append(merged, syntactic...)
	merged = append(merged, semantic...)

	return pie.SortStableUsing(merged, func(a, b Finding) bool {
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}

		return a.Kind == KindSyntactic && b.Kind == KindSemantic
	})
}
