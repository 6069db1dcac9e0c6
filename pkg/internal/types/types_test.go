package types_test

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/propvault/pkg/internal/types"
)

func TestCategoryTableCoversEveryCategory(t *testing.T) {
	seen := map[string]bool{}

	for _, c := range types.Categories() {
		cfg, ok := c.Config()
		require.True(t, ok, "category %d has no config", c)
		assert.NotEmpty(t, cfg.Name)
		assert.NotEmpty(t, cfg.Label)
		assert.False(t, seen[cfg.Name], "duplicate category name %q", cfg.Name)
		seen[cfg.Name] = true

		parsed, err := types.ParseCategory(strings.ToUpper(cfg.Name))
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}

	_, err := types.ParseCategory("broker")
	assert.Error(t, err)
	assert.False(t, types.Category(200).Valid())
}

func TestCategoryJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		C types.Category `json:"c"`
	}{types.CategoryRD})
	require.NoError(t, err)
	assert.JSONEq(t, `{"c":"rd"}`, string(b))

	var out struct {
		C types.Category `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"c":"shared"}`), &out))
	assert.Equal(t, types.CategoryShared, out.C)
	assert.Error(t, json.Unmarshal([]byte(`{"c":"nope"}`), &out))
}

// TestFieldTableMatchesStruct 字段表必须与 Fields 的 json 标签一一对应.
func TestFieldTableMatchesStruct(t *testing.T) {
	rt := reflect.TypeOf(types.Fields{})
	require.Len(t, types.FieldTable, rt.NumField())

	for i := 0; i < rt.NumField(); i++ {
		tag, _, _ := strings.Cut(rt.Field(i).Tag.Get("json"), ",")
		spec, ok := types.LookupField(types.FieldName(tag))
		require.True(t, ok, "field %s missing from table", tag)
		assert.NotEmpty(t, spec.Label)
	}
}

func TestFieldsGetSetMerge(t *testing.T) {
	var f types.Fields

	require.NoError(t, f.Set(types.FieldVillage, "Bopal"))
	assert.Equal(t, "Bopal", f.Village)

	v, ok := f.Get(types.FieldVillage)
	assert.True(t, ok)
	assert.Equal(t, "Bopal", v)

	assert.Error(t, f.Set("unknown", "x"))

	changed := f.Merge(types.Fields{Village: "Bopal", Zone: "R1"})
	assert.Equal(t, []types.FieldName{types.FieldZone}, changed)
	assert.Equal(t, "R1", f.Zone)

	var names []types.FieldName
	f.Each(func(spec types.FieldSpec, _ string) { names = append(names, spec.Name) })
	assert.Equal(t, types.FieldSharerName, names[0])
	assert.Len(t, names, len(types.FieldTable))
}

func TestAttachmentKind(t *testing.T) {
	assert.Equal(t, "images", types.KindImage.FileType())
	assert.Equal(t, "pdfs[]", types.KindPDF.FormField())

	k, err := types.ParseFileType("pdfs")
	require.NoError(t, err)
	assert.Equal(t, types.KindPDF, k)

	_, err = types.ParseFileType("videos")
	assert.Error(t, err)
}

func TestNewPagination(t *testing.T) {
	p := types.NewPagination(2, 10, 25)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasPrev)
	assert.True(t, p.HasNext)

	p = types.NewPagination(1, 10, 0)
	assert.Equal(t, 0, p.TotalPages)
	assert.False(t, p.HasPrev)
	assert.False(t, p.HasNext)
}

func TestRecordJSONFlattensFields(t *testing.T) {
	r := types.Record{ID: "01H", Category: types.CategoryWallet}
	r.SharerName = "Ramesh"

	b, err := json.Marshal(r)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "Ramesh", m["sharer_name"])
	assert.Equal(t, "wallet", m["category"])
	assert.Equal(t, false, m["onBoard"])
}
