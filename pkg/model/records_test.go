package model

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/vetsynth/pkg/core"
)

func TestSchemasMatchRelations(t *testing.T) {
	mem := memory.NewGoAllocator()
	tests := []struct {
		stage core.Stage
		rels  []core.Relation
	}{
		{core.StageClean, (&Clean{}).Relations(mem)},
		{core.StageAU, (&AU{}).Relations(mem)},
	}
	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			schemas := Schemas(tt.stage)
			require.Len(t, schemas, len(tt.rels))
			for _, r := range tt.rels {
				assert.True(t, schemas[r.Name].Equal(r.Record.Schema()), r.Name)
				assert.Zero(t, r.Record.NumRows())
				r.Release()
			}
		})
	}
}

func TestDirtySchemasAreText(t *testing.T) {
	au := Schemas(core.StageAU)
	dirty := Schemas(core.StageDirty)
	require.Len(t, dirty, len(au))
	for name, sc := range dirty {
		assert.Equal(t, au[name].NumFields(), sc.NumFields(), name)
		for i, f := range sc.Fields() {
			assert.Equal(t, au[name].Field(i).Name, f.Name)
			assert.True(t, arrow.TypeEqual(arrow.BinaryTypes.String, f.Type))
		}
	}
	assert.Nil(t, Schemas(core.Stage("other")))
}
