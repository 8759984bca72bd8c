package check

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const redactedDomain = `{
	"objectClassName": "domain",
	"ldhName": "foo.net",
	"rdapConformance": ["rdap_level_0", "redacted"],
	"redacted": [
		{
			"name": {"type": "Registrant Email"},
			"prePath": "$.entities[0].vcardArray[1][5][3]",
			"pathLang": "jsonpath",
			"method": "removal",
			"reason": {"description": "Server policy"}
		},
		{
			"name": {"type": "Registrant Name"},
			"prePath": "$.entities[*].vcardArray[1][1][3]",
			"method": "removal"
		}
	]
}`

func TestSimplifyRedactions(t *testing.T) {
	r := parse(t, redactedDomain)
	simple := SimplifyRedactions(r, RedactionOptions{})
	require.Len(t, simple, 1)

	assert.Equal(t, "Registrant Email", simple[0].Name)
	assert.Equal(t, "$.entities[0].vcardArray[1][5][3]", simple[0].Path)
	assert.Equal(t, "removal", simple[0].Method)
	assert.Equal(t, "Server policy", simple[0].Reason)

	// the wildcard directive stays, the simplified one is dropped
	common := r.Common()
	require.Len(t, common.Redacted, 1)
	assert.Equal(t, "Registrant Name", common.Redacted[0].Name.Type)

	// a summarizing remark is attached
	require.NotEmpty(t, common.Remarks)
	last := common.Remarks[len(common.Remarks)-1]
	assert.Equal(t, simplifiedRedactionsTitle, last.Title)
	require.NotNil(t, last.Description)
	assert.Contains(t, last.Description.Values[0], "Registrant Email")
}

func TestSimplifyRedactions_ShowRawKeepsDirectives(t *testing.T) {
	r := parse(t, redactedDomain)
	simple := SimplifyRedactions(r, RedactionOptions{ShowRaw: true})
	require.Len(t, simple, 1)
	assert.Len(t, r.Common().Redacted, 2)
}

func TestSimplifyRedactions_Disabled(t *testing.T) {
	r := parse(t, redactedDomain)
	assert.Nil(t, SimplifyRedactions(r, RedactionOptions{DoNotSimplify: true}))
	assert.Len(t, r.Common().Redacted, 2)
}

func TestIsSingleLeafPath(t *testing.T) {
	assert.True(t, isSingleLeafPath("$.ldhName"))
	assert.True(t, isSingleLeafPath("$.entities[0].vcardArray[1][3][3]"))
	assert.True(t, isSingleLeafPath(`$["secureDNS"].delegationSigned`))

	assert.False(t, isSingleLeafPath(""))
	assert.False(t, isSingleLeafPath("ldhName"))
	assert.False(t, isSingleLeafPath("$.entities[*].handle"))
	assert.False(t, isSingleLeafPath("$..handle"))
	assert.False(t, isSingleLeafPath("$.entities[?(@.handle)]"))
	assert.False(t, isSingleLeafPath("$.entities[0:2]"))
}
