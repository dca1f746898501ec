package loaders

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/TFMV/vetsynth/pkg/core"
)

// LoadAll loads every relation into the schema configured for its stage.
// schemas maps a stage name to a database schema.
func LoadAll(ctx context.Context, l core.Loader, schemas map[string]string, rels []core.Relation, log *zap.Logger) error {
	for _, rel := range rels {
		schema, ok := schemas[string(rel.Stage)]
		if !ok {
			return fmt.Errorf("no schema configured for stage %s", rel.Stage)
		}
		if err := l.Load(ctx, schema, rel); err != nil {
			return err
		}
		log.Info("Relation loaded",
			zap.String("schema", schema),
			zap.String("relation", rel.Name),
			zap.Int64("rows", rel.Record.NumRows()))
	}
	return nil
}
