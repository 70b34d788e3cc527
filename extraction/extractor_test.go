package extraction

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBraceExtractorPlainReply(t *testing.T) {
	for _, text := range []string{
		"Hi there! What are you in the mood for?",
		"",
		"closing brace only }",
		"{ never closed",
	} {
		q, ok := BraceExtractor{}.Extract(text)
		require.False(t, ok, text)
		require.Nil(t, q)
		require.Equal(t, text, DisplayText(text, q))
	}
}

func TestBraceExtractorEmbeddedObject(t *testing.T) {
	text := "Sure thing!\n{\"food\":\"pizza\",\"location\":\"Chicago\",\"message\":\"Sure!\"}\nEnjoy."

	q, ok := BraceExtractor{}.Extract(text)
	require.True(t, ok)
	require.Equal(t, "pizza", q.Food)
	require.Equal(t, "Chicago", q.Location)
	require.Empty(t, q.Price)
	require.Nil(t, q.OpenNow)
	require.Nil(t, q.Radius)
	require.True(t, q.Searchable())
	require.Equal(t, "Sure!", DisplayText(text, q))
}

func TestBraceExtractorOptionalFields(t *testing.T) {
	text := `{"food":"sushi","location":"LA","price":"$$$","open_now":true,"radius":1500,"message":"On it"}`

	q, ok := BraceExtractor{}.Extract(text)
	require.True(t, ok)
	require.Equal(t, "$$$", q.Price)
	require.NotNil(t, q.OpenNow)
	require.True(t, *q.OpenNow)
	require.NotNil(t, q.Radius)
	require.Equal(t, 1500, *q.Radius)
}

func TestBraceExtractorLenientTypes(t *testing.T) {
	text := `{"food":"tacos","location":"Austin","price":"cheap","open_now":"true","radius":"800"}`

	q, ok := BraceExtractor{}.Extract(text)
	require.True(t, ok)
	require.Empty(t, q.Price, "non-tier price is dropped")
	require.True(t, q.WantsOpenNow())
	require.Equal(t, 800, *q.Radius)

	q, ok = BraceExtractor{}.Extract(`{"food":3,"location":"Austin","open_now":"maybe","radius":-2}`)
	require.True(t, ok)
	require.Empty(t, q.Food)
	require.Nil(t, q.OpenNow)
	require.Nil(t, q.Radius)
	require.False(t, q.Searchable())
}

func TestBraceExtractorOutOfRangeRadius(t *testing.T) {
	for _, radius := range []string{`1e300`, `"1e300"`, `"Inf"`, `2147483648`} {
		q, ok := BraceExtractor{}.Extract(`{"food":"tacos","location":"Austin","radius":` + radius + `}`)
		require.True(t, ok, radius)
		require.Nil(t, q.Radius, radius)
		require.True(t, q.Searchable(), radius)
	}

	q, ok := BraceExtractor{}.Extract(`{"food":"tacos","location":"Austin","radius":40000}`)
	require.True(t, ok)
	require.Equal(t, 40000, *q.Radius)
}

func TestBraceExtractorMalformedJSON(t *testing.T) {
	text := `Here you go: {"food": "pizza", "location": }`

	q, ok := BraceExtractor{}.Extract(text)
	require.False(t, ok)
	require.Nil(t, q)
	require.Equal(t, text, DisplayText(text, q))
}

func TestBraceExtractorGreedySpan(t *testing.T) {
	// two objects make the greedy span undecodable, which degrades to a plain reply
	_, ok := BraceExtractor{}.Extract(`{"food":"a"} and {"food":"b"}`)
	require.False(t, ok)
}

func TestBraceExtractorMissingRequiredFields(t *testing.T) {
	q, ok := BraceExtractor{}.Extract(`{"food":"ramen","message":"Where should I look?"}`)
	require.True(t, ok)
	require.False(t, q.Searchable())
	require.Equal(t, "Where should I look?", DisplayText("raw", q))
}

func TestFencedExtractor(t *testing.T) {
	text := "Sure!\n```json\n{\"food\":\"pho\",\"location\":\"Seattle\"}\n```"

	q, ok := FencedExtractor{}.Extract(text)
	require.True(t, ok)
	require.Equal(t, "pho", q.Food)

	_, ok = FencedExtractor{}.Extract(`{"food":"pho","location":"Seattle"}`)
	require.False(t, ok)
}

func TestChainFallsBack(t *testing.T) {
	e, err := New(StrategyChain)
	require.NoError(t, err)

	q, ok := e.Extract(`{"food":"pho","location":"Seattle"}`)
	require.True(t, ok)
	require.Equal(t, "Seattle", q.Location)
}

func TestNew(t *testing.T) {
	e, err := New("")
	require.NoError(t, err)
	require.IsType(t, BraceExtractor{}, e)

	e, err = New("FENCED")
	require.NoError(t, err)
	require.IsType(t, FencedExtractor{}, e)

	_, err = New("xml")
	require.Error(t, err)
}
