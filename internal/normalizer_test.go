package internal

import (
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/lychee-technology/apischema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// baseForm returns a minimal valid submission with OBJECT roots.
func baseForm() url.Values {
	return url.Values{
		"name":                {"List users"},
		"path":                {"/users"},
		"method":              {"GET"},
		"bodyType":            {"JSON"},
		"bodyRaw.example":     {""},
		"bodyRaw.description": {""},
		"bodyJson.type":       {"OBJECT"},
		"response.type":       {"OBJECT"},
	}
}

func normalize(t *testing.T, values url.Values) (*apischema.ApiData, apischema.ValidationReport) {
	t.Helper()
	data, err := NewNormalizer(apischema.DefaultConfig().Editor).Normalize(values)
	if err != nil {
		report, ok := apischema.AsValidationReport(err)
		require.True(t, ok, "unexpected error type: %v", err)
		require.Nil(t, data)
		return nil, report
	}
	require.NotNil(t, data)
	return data, nil
}

func TestNormalizePrunesNamelessChildren(t *testing.T) {
	values := baseForm()
	values.Set("bodyJson.name", "ignored")
	values.Set("bodyJson.children[0].name", "id")
	values.Set("bodyJson.children[0].type", "STRING")
	values.Set("bodyJson.children[0].isRequired", "true")
	values.Set("bodyJson.children[1].name", "")
	values.Set("bodyJson.children[1].type", "INT")

	data, report := normalize(t, values)
	require.Nil(t, report)

	root := data.BodyJSON
	assert.Equal(t, "root", root.Name)
	assert.Equal(t, apischema.NodeTypeObject, root.Type)
	require.Len(t, root.Children, 1)
	assert.Equal(t, &apischema.SchemaNode{
		Name:       "id",
		Type:       apischema.NodeTypeString,
		IsRequired: true,
		Children:   []*apischema.SchemaNode{},
	}, root.Children[0])
}

func TestNormalizeQueryParams(t *testing.T) {
	values := baseForm()
	values.Set("queryParams[0].name", "page")
	values.Set("queryParams[1].name", "")
	values.Set("queryParams[1].type", "INT")
	values.Set("headers[0].name", "  X-Token ")
	values.Set("headers[0].type", "STRING")
	values.Set("headers[0].example", " abc ")
	values.Set("headers[0].isRequired", "true")

	data, report := normalize(t, values)
	require.Nil(t, report)

	assert.Equal(t, []apischema.RequestParam{
		{Name: "page", Type: apischema.ParamTypeString, Example: "", Description: ""},
	}, data.QueryParams)
	assert.Equal(t, []apischema.RequestParam{
		{Name: "X-Token", Type: apischema.ParamTypeString, Example: "abc", IsRequired: true},
	}, data.Headers)
	assert.Equal(t, []apischema.RequestParam{}, data.BodyForm)
	assert.Equal(t, []apischema.RequestParam{}, data.PathParams)
}

func TestNormalizeMissingMethod(t *testing.T) {
	values := baseForm()
	values.Del("method")

	data, report := normalize(t, values)
	assert.Nil(t, data)
	assert.Equal(t, "is required", report["method"])
}

func TestNormalizeTopLevelValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(v url.Values)
		want   map[string]string
	}{
		{
			name: "unknown method",
			mutate: func(v url.Values) {
				v.Set("method", "FETCH")
			},
			want: map[string]string{"method": "must be one of GET, POST, PUT, PATCH, DELETE, HEAD, OPTIONS"},
		},
		{
			name: "missing general fields",
			mutate: func(v url.Values) {
				v.Del("name")
				v.Del("path")
				v.Del("bodyType")
			},
			want: map[string]string{"name": "is required", "path": "is required", "bodyType": "is required"},
		},
		{
			name: "missing raw body",
			mutate: func(v url.Values) {
				v.Del("bodyRaw.example")
				v.Del("bodyRaw.description")
			},
			want: map[string]string{"bodyRaw.example": "is required", "bodyRaw.description": "is required"},
		},
		{
			name: "missing trees",
			mutate: func(v url.Values) {
				v.Del("bodyJson.type")
				v.Del("response.type")
			},
			want: map[string]string{"bodyJson": "is required", "response": "is required"},
		},
		{
			name: "root without type",
			mutate: func(v url.Values) {
				v.Del("bodyJson.type")
				v.Set("bodyJson.description", "payload")
			},
			want: map[string]string{"bodyJson.type": "is required"},
		},
		{
			name: "nameless row still needs a type",
			mutate: func(v url.Values) {
				v.Set("response.children[0].name", "")
			},
			want: map[string]string{"response.children[0].type": "is required"},
		},
		{
			name: "unknown node type",
			mutate: func(v url.Values) {
				v.Set("bodyJson.children[0].name", "when")
				v.Set("bodyJson.children[0].type", "DATE")
			},
			want: map[string]string{"bodyJson.children[0].type": "must be one of OBJECT, ARRAY, STRING, INT, FLOAT, BOOLEAN"},
		},
		{
			name: "unknown param type",
			mutate: func(v url.Values) {
				v.Set("bodyForm[0].name", "upload")
				v.Set("bodyForm[0].type", "BLOB")
			},
			want: map[string]string{"bodyForm[0].type": "must be one of STRING, FILE, OBJECT, ARRAY, INT, FLOAT, BOOLEAN"},
		},
		{
			name: "malformed path",
			mutate: func(v url.Values) {
				v.Set("bodyJson.children[x].name", "a")
			},
			want: map[string]string{"bodyJson.children[x].name": `field path "bodyJson.children[x].name" has an invalid index "x"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := baseForm()
			tt.mutate(values)
			data, report := normalize(t, values)
			assert.Nil(t, data)
			assert.Equal(t, apischema.ValidationReport(tt.want), report)
		})
	}
}

func TestNormalizeEmptyParamTypeDefaultsToString(t *testing.T) {
	values := baseForm()
	values.Set("bodyForm[0].name", "file")
	values.Set("bodyForm[0].type", "")

	data, report := normalize(t, values)
	require.Nil(t, report)
	require.Len(t, data.BodyForm, 1)
	assert.Equal(t, apischema.ParamTypeString, data.BodyForm[0].Type)
}

func TestNormalizeTypeCoercion(t *testing.T) {
	values := baseForm()
	// array carrying a hidden children list and a named, required element
	values.Set("bodyJson.children[0].name", "tags")
	values.Set("bodyJson.children[0].type", "ARRAY")
	values.Set("bodyJson.children[0].children[0].name", "stale")
	values.Set("bodyJson.children[0].children[0].type", "STRING")
	values.Set("bodyJson.children[0].arrayElem.name", "custom")
	values.Set("bodyJson.children[0].arrayElem.type", "STRING")
	values.Set("bodyJson.children[0].arrayElem.isRequired", "true")
	// scalar carrying hidden nested rows
	values.Set("bodyJson.children[1].name", "count")
	values.Set("bodyJson.children[1].type", "INT")
	values.Set("bodyJson.children[1].children[0].name", "stale")
	values.Set("bodyJson.children[1].children[0].type", "STRING")
	values.Set("bodyJson.children[1].arrayElem.type", "STRING")
	// object carrying a hidden element schema
	values.Set("bodyJson.children[2].name", "owner")
	values.Set("bodyJson.children[2].type", "OBJECT")
	values.Set("bodyJson.children[2].arrayElem.type", "STRING")

	data, report := normalize(t, values)
	require.Nil(t, report)
	require.NoError(t, data.BodyJSON.Validate())

	children := data.BodyJSON.Children
	require.Len(t, children, 3)

	tags := children[0]
	assert.Empty(t, tags.Children)
	require.NotNil(t, tags.ArrayElem)
	assert.Equal(t, "items", tags.ArrayElem.Name)
	assert.False(t, tags.ArrayElem.IsRequired)

	assert.Empty(t, children[1].Children)
	assert.Nil(t, children[1].ArrayElem)
	assert.Nil(t, children[2].ArrayElem)
}

func TestNormalizePrunesBottomUp(t *testing.T) {
	values := baseForm()
	values.Set("response.children[0].type", "OBJECT")
	values.Set("response.children[0].children[0].name", "orphan")
	values.Set("response.children[0].children[0].type", "STRING")
	values.Set("response.children[1].name", "list")
	values.Set("response.children[1].type", "ARRAY")
	values.Set("response.children[1].arrayElem.type", "OBJECT")
	values.Set("response.children[1].arrayElem.children[0].name", "")
	values.Set("response.children[1].arrayElem.children[0].type", "STRING")
	values.Set("response.children[1].arrayElem.children[1].name", "kept")
	values.Set("response.children[1].arrayElem.children[1].type", "BOOLEAN")

	data, report := normalize(t, values)
	require.Nil(t, report)

	resp := data.ResponseOK()
	require.Len(t, resp.Children, 1)
	list := resp.Children[0]
	assert.Equal(t, "list", list.Name)
	require.NotNil(t, list.ArrayElem)
	require.Len(t, list.ArrayElem.Children, 1)
	assert.Equal(t, "kept", list.ArrayElem.Children[0].Name)
}

func TestNormalizeDefaultsAndTrimming(t *testing.T) {
	values := baseForm()
	values.Set("name", "  List users  ")
	values.Set("description", "   ")
	values.Set("bodyJson.children[0].name", " spaced ")
	values.Set("bodyJson.children[0].type", "STRING")
	values.Set("bodyJson.children[0].example", " keep ")

	data, report := normalize(t, values)
	require.Nil(t, report)

	assert.Equal(t, "List users", data.Name)
	assert.Nil(t, data.Description, "blank description is dropped")

	child := data.BodyJSON.Children[0]
	assert.Equal(t, " spaced ", child.Name, "tree text is not trimmed")
	assert.Equal(t, " keep ", child.Example)
	assert.Equal(t, "", child.Description)
	assert.Equal(t, "", child.Mock)
	assert.False(t, child.IsRequired)
}

func TestNormalizeRejectsDuplicateNames(t *testing.T) {
	values := baseForm()
	values.Set("response.children[0].name", "id")
	values.Set("response.children[0].type", "STRING")
	values.Set("response.children[1].name", "")
	values.Set("response.children[1].type", "STRING")
	values.Set("response.children[2].name", "id")
	values.Set("response.children[2].type", "INT")
	values.Set("response.children[3].name", "owner")
	values.Set("response.children[3].type", "OBJECT")
	values.Set("response.children[3].children[0].name", "id")
	values.Set("response.children[3].children[0].type", "INT")
	values.Set("bodyJson.children[0].name", "list")
	values.Set("bodyJson.children[0].type", "ARRAY")
	values.Set("bodyJson.children[0].arrayElem.type", "OBJECT")
	values.Set("bodyJson.children[0].arrayElem.children[0].name", "x")
	values.Set("bodyJson.children[0].arrayElem.children[0].type", "INT")
	values.Set("bodyJson.children[0].arrayElem.children[1].name", "x")
	values.Set("bodyJson.children[0].arrayElem.children[1].type", "FLOAT")

	_, report := normalize(t, values)
	assert.Equal(t, apischema.ValidationReport{
		"response.children[2].name":                       apischema.DuplicateNameMessage,
		"bodyJson.children[0].arrayElem.children[1].name": apischema.DuplicateNameMessage,
	}, report)

	values.Set("response.children[2].name", "code")
	values.Set("bodyJson.children[0].arrayElem.children[1].name", "y")
	data, report := normalize(t, values)
	require.Nil(t, report)

	_, err := apischema.ToJSONSchema(data.ResponseOK())
	assert.NoError(t, err)
}

func TestNormalizeCompactsSparseRows(t *testing.T) {
	values := baseForm()
	values.Set("bodyJson.children[4].name", "b")
	values.Set("bodyJson.children[4].type", "STRING")
	values.Set("bodyJson.children[1].name", "a")
	values.Set("bodyJson.children[1].type", "STRING")

	data, report := normalize(t, values)
	require.Nil(t, report)
	require.Len(t, data.BodyJSON.Children, 2)
	assert.Equal(t, "a", data.BodyJSON.Children[0].Name)
	assert.Equal(t, "b", data.BodyJSON.Children[1].Name)
}

func TestNormalizeLimits(t *testing.T) {
	n := NewNormalizer(apischema.EditorConfig{MaxDepth: 2, MaxRows: 2})

	values := baseForm()
	path := NodePath("bodyJson")
	for i := 0; i < 3; i++ {
		path = path.Child(0)
		values.Set(path.Attr(FieldName).String(), fmt.Sprintf("level%d", i))
		values.Set(path.Attr(FieldType).String(), "OBJECT")
	}
	for i := 0; i < 3; i++ {
		values.Set(ParamPath(FieldHeaders, i).Attr(FieldName).String(), fmt.Sprintf("h%d", i))
	}

	_, err := n.Normalize(values)
	report, ok := apischema.AsValidationReport(err)
	require.True(t, ok)
	assert.Contains(t, report, "bodyJson.children[0].children[0].children[0].name")
	assert.Contains(t, report, "bodyJson.children[0].children[0].children[0].type")
	assert.NotContains(t, report, "headers", "row counts are not checked once a field is too deep")

	values = baseForm()
	for i := 0; i < 3; i++ {
		values.Set(ParamPath(FieldHeaders, i).Attr(FieldName).String(), fmt.Sprintf("h%d", i))
	}
	_, err = n.Normalize(values)
	report, ok = apischema.AsValidationReport(err)
	require.True(t, ok)
	assert.Contains(t, report, "headers")
}

func TestNormalizeRejectsVeryDeepKeyQuickly(t *testing.T) {
	values := baseForm()
	key := "bodyJson" + strings.Repeat(".arrayElem", 10000) + ".type"
	values.Set(key, "INT")

	start := time.Now()
	_, err := NewNormalizer(apischema.DefaultConfig().Editor).Normalize(values)
	elapsed := time.Since(start)

	report, ok := apischema.AsValidationReport(err)
	require.True(t, ok)
	assert.Equal(t, apischema.ValidationReport{key: "nesting is deeper than 32 levels"}, report)
	assert.Less(t, elapsed, time.Second)
}

func TestNormalizeIsPure(t *testing.T) {
	values := baseForm()
	values.Set("bodyJson.children[0].name", "id")
	values.Set("bodyJson.children[0].type", "STRING")
	snapshot := url.Values{}
	for k, v := range values {
		snapshot[k] = append([]string(nil), v...)
	}

	first, _ := normalize(t, values)
	second, _ := normalize(t, values)
	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, values, "input is not modified")
}

// randomTree builds a tree whose forced fields already hold their forced
// values, except that containers may carry example and mock text.
func randomTree(rng *rand.Rand, depth int, role NodeRole, name string) *apischema.SchemaNode {
	types := apischema.NodeTypes
	if depth >= 3 {
		types = types[2:]
	}
	node := &apischema.SchemaNode{
		Name:        name,
		Type:        types[rng.IntN(len(types))],
		Description: fmt.Sprintf("desc %d", rng.IntN(100)),
		IsRequired:  role == NodeChild && rng.IntN(2) == 0,
		Children:    []*apischema.SchemaNode{},
	}
	if role == NodeRoot {
		node.Type = apischema.NodeTypeObject
	}
	node.Example = fmt.Sprintf(" ex %d ", rng.IntN(100))
	node.Mock = strings.Repeat("@", rng.IntN(3))
	switch node.Type {
	case apischema.NodeTypeObject:
		for i := 0; i < rng.IntN(4); i++ {
			node.Children = append(node.Children, randomTree(rng, depth+1, NodeChild, fmt.Sprintf("f%d_%d", depth, i)))
		}
	case apischema.NodeTypeArray:
		if rng.IntN(4) > 0 {
			node.ArrayElem = randomTree(rng, depth+1, NodeArrayElem, apischema.ArrayElemName)
		}
	}
	return node
}

// withoutContainerText returns a copy of node with the example and mock of
// every OBJECT and ARRAY node cleared.
func withoutContainerText(node *apischema.SchemaNode) *apischema.SchemaNode {
	if node == nil {
		return nil
	}
	out := *node
	if out.Type.IsContainer() {
		out.Example = ""
		out.Mock = ""
	}
	out.Children = make([]*apischema.SchemaNode, 0, len(node.Children))
	for _, child := range node.Children {
		out.Children = append(out.Children, withoutContainerText(child))
	}
	out.ArrayElem = withoutContainerText(node.ArrayElem)
	return &out
}

func randomApiData(rng *rand.Rand) *apischema.ApiData {
	desc := "Returns users"
	return &apischema.ApiData{
		Name:        "List users",
		Path:        "/users/{id}",
		Method:      apischema.RequestMethods[rng.IntN(len(apischema.RequestMethods))],
		Description: &desc,
		PathParams:  []apischema.RequestParam{},
		QueryParams: []apischema.RequestParam{
			{Name: "page", Type: apischema.ParamTypeInt, Example: "1", Description: "page number", IsRequired: true},
			{Name: "q", Type: apischema.ParamTypeString},
		},
		Headers:  []apischema.RequestParam{},
		BodyType: apischema.BodyTypes[rng.IntN(len(apischema.BodyTypes))],
		BodyForm: []apischema.RequestParam{
			{Name: "avatar", Type: apischema.ParamTypeFile, Description: "image"},
		},
		BodyRaw:  apischema.BodyRaw{Example: "{}", Description: "raw"},
		BodyJSON: randomTree(rng, 0, NodeRoot, apischema.RootNodeName),
		Response: map[string]*apischema.SchemaNode{
			apischema.ResponseStatusOK: randomTree(rng, 0, NodeRoot, apischema.RootNodeName),
		},
	}
}

func TestRoundTripThroughForm(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	n := NewNormalizer(apischema.DefaultConfig().Editor)

	for i := 0; i < 200; i++ {
		original := randomApiData(rng)

		values := url.Values{}
		ApiDataToForm(original).WriteFields(values)

		got, err := n.Normalize(values)
		require.NoError(t, err, "iteration %d", i)

		want := *original
		want.BodyJSON = withoutContainerText(original.BodyJSON)
		want.Response = map[string]*apischema.SchemaNode{
			apischema.ResponseStatusOK: withoutContainerText(original.ResponseOK()),
		}
		require.Equal(t, &want, got, "iteration %d", i)
		require.NoError(t, got.BodyJSON.Validate(), "iteration %d", i)
		require.NoError(t, got.ResponseOK().Validate(), "iteration %d", i)
	}
}

func TestNormalizeClearsContainerText(t *testing.T) {
	values := baseForm()
	values.Set("response.example", "{}")
	values.Set("response.children[0].name", "tags")
	values.Set("response.children[0].type", "ARRAY")
	values.Set("response.children[0].example", "[1,2]")
	values.Set("response.children[0].mock", "@list")
	values.Set("response.children[0].arrayElem.type", "INT")
	values.Set("response.children[0].arrayElem.example", "1")
	values.Set("response.children[0].arrayElem.mock", "@integer")

	data, report := normalize(t, values)
	require.Nil(t, report)

	root := data.ResponseOK()
	assert.Empty(t, root.Example)
	tags := root.Children[0]
	assert.Empty(t, tags.Example)
	assert.Empty(t, tags.Mock)
	assert.Equal(t, "1", tags.ArrayElem.Example)
	assert.Equal(t, "@integer", tags.ArrayElem.Mock)
	assert.NoError(t, root.Validate())
}


func TestNormalizeIsIdempotent(t *testing.T) {
	values := baseForm()
	values.Set("bodyJson.children[0].name", "a")
	values.Set("bodyJson.children[0].type", "ARRAY")
	values.Set("bodyJson.children[0].children[0].name", "stale")
	values.Set("bodyJson.children[0].children[0].type", "INT")
	values.Set("bodyJson.children[0].arrayElem.name", "x")
	values.Set("bodyJson.children[0].arrayElem.type", "OBJECT")
	values.Set("bodyJson.children[0].arrayElem.children[0].type", "STRING")
	values.Set("bodyJson.children[1].type", "OBJECT")

	once, report := normalize(t, values)
	require.Nil(t, report)

	again := url.Values{}
	ApiDataToForm(once).WriteFields(again)
	twice, report := normalize(t, again)
	require.Nil(t, report)

	assert.Equal(t, once, twice)
}
