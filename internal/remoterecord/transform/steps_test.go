package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSnake(t *testing.T) {
	tests := map[string]string{
		"userId":     "user_id",
		"UserID":     "user_id",
		"avatarURL":  "avatar_url",
		"HTMLParser": "html_parser",
		"already_ok": "already_ok",
		"id":         "id",
		"item2Count": "item2_count",
		"dash-case":  "dash_case",
		"":           "",
	}

	for in, want := range tests {
		assert.Equal(t, want, ToSnake(in), "ToSnake(%q)", in)
	}
}

func TestToLowerCamel(t *testing.T) {
	tests := map[string]string{
		"user_id":    "userId",
		"created_at": "createdAt",
		"id":         "id",
		"full__name": "fullName",
		"_":          "_",
		"already":    "already",
	}

	for in, want := range tests {
		assert.Equal(t, want, ToLowerCamel(in), "ToLowerCamel(%q)", in)
	}
}

func TestSnakeCase_Up(t *testing.T) {
	out, err := SnakeCase{}.Apply(map[string]any{"userId": 1}, Up)
	require.NoError(t, err)
	assert.Equal(t, 1, out.(map[string]any)["user_id"])
}

func TestSnakeCase_Down(t *testing.T) {
	out, err := SnakeCase{}.Apply(map[string]any{"user_id": 1}, Down)
	require.NoError(t, err)
	assert.Equal(t, 1, out.(map[string]any)["userId"])
}

func TestSnakeCase_KeepsStructure(t *testing.T) {
	in := map[string]any{
		"pullRequests": []map[string]any{{"headRef": "main"}},
		"labels":       []any{"bugFix", 3},
		"count":        2,
	}

	out, err := SnakeCase{}.Apply(in, Up)
	require.NoError(t, err)

	m := out.(map[string]any)
	assert.Equal(t, []map[string]any{{"head_ref": "main"}}, m["pull_requests"])
	assert.Equal(t, []any{"bugFix", 3}, m["labels"], "non-mapping values are left alone")
	assert.Equal(t, 2, m["count"])
}

func TestSnakeCase_DoesNotMutateInput(t *testing.T) {
	in := map[string]any{"userId": 1}
	_, err := SnakeCase{}.Apply(in, Up)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"userId": 1}, in)
}

func TestDotParams_Up(t *testing.T) {
	out, err := DotParams{}.Apply(map[string]any{
		"customer": map[string]any{"user_id": 1},
		"state":    "completed",
	}, Up)
	require.NoError(t, err)
	assert.Equal(t, "customer.user_id:1;state:completed", out)
}

func TestDotParams_EscapesKeysAndValues(t *testing.T) {
	out := EncodeDotParams(map[string]any{
		"q":    "a b;c:d",
		"none": nil,
	})
	assert.Equal(t, "none:;q:a+b%3Bc%3Ad", out)
}

func TestDotParams_DeepNesting(t *testing.T) {
	out := EncodeDotParams(map[string]any{
		"a": map[string]any{"b": map[string]any{"c": true}},
	})
	assert.Equal(t, "a.b.c:true", out)
}

func TestDotParams_Down(t *testing.T) {
	out, err := DotParams{}.Apply("customer.user_id:1;state:completed", Down)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"customer": map[string]any{"user_id": "1"},
		"state":    "completed",
	}, out)
}

func TestDotParams_RoundTripOfStringValues(t *testing.T) {
	in := map[string]any{
		"filter": map[string]any{"owner": "ada lovelace", "kind": "a;b"},
		"page":   "2",
	}

	parsed, err := ParseDotParams(EncodeDotParams(in))
	require.NoError(t, err)
	assert.Equal(t, in, parsed)
}

func TestParseDotParams_Errors(t *testing.T) {
	tests := map[string]string{
		"missing separator": "justakey",
		"duplicate key":     "a:1;a:2",
		"value and group":   "a:1;a.b:2",
		"group and value":   "a.b:2;a:1",
		"bad escape":        "a:%zz",
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDotParams(input)
			assert.ErrorIs(t, err, ErrMalformedParams)
		})
	}
}

func TestParseDotParams_Empty(t *testing.T) {
	out, err := ParseDotParams("")
	require.NoError(t, err)
	assert.Empty(t, out)
}
