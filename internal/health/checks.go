package health

import (
	"context"
	"fmt"

	"github.com/testimony-project/testimony/internal/termstore"
	"github.com/testimony-project/testimony/pkg/provider/ner"
)

// TermStore returns a readiness check that issues a lookup against the
// Indigenous term store. The probe term does not need to exist; only the
// round trip has to succeed.
func TermStore(store termstore.Store) Checker {
	return Checker{
		Name: "term_store",
		Check: func(ctx context.Context) error {
			if _, _, err := store.Lookup(ctx, "healthcheck"); err != nil {
				return fmt.Errorf("term store lookup: %w", err)
			}
			return nil
		},
	}
}

// Recognizer returns a readiness check that sends a short probe text through
// the entity recognizer. Hosted backends incur one small request per probe,
// so point readiness polling at a modest interval.
func Recognizer(p ner.Provider) Checker {
	return Checker{
		Name: "recognizer",
		Check: func(ctx context.Context) error {
			if _, err := p.Recognize(ctx, "readiness probe"); err != nil {
				return fmt.Errorf("recognizer %s: %w", p.Name(), err)
			}
			return nil
		},
	}
}
