package cmd

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnowledgeIndexSearchDelete_RoundTrip(t *testing.T) {
	chdirTemp(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>octobrain supports hybrid retrieval over memories</p></body></html>`))
	}))
	defer srv.Close()

	index := newKnowledgeIndexCmd()
	idxBuf := &bytes.Buffer{}
	index.SetOut(idxBuf)
	index.SetArgs([]string{srv.URL})
	require.NoError(t, index.Execute())
	assert.Contains(t, idxBuf.String(), "indexed")

	search := newKnowledgeSearchCmd()
	searchBuf := &bytes.Buffer{}
	search.SetOut(searchBuf)
	search.SetArgs([]string{"hybrid retrieval"})
	require.NoError(t, search.Execute())
	assert.Contains(t, searchBuf.String(), "hybrid retrieval")

	del := newKnowledgeDeleteCmd()
	delBuf := &bytes.Buffer{}
	del.SetOut(delBuf)
	del.SetArgs([]string{srv.URL})
	require.NoError(t, del.Execute())
	assert.Contains(t, delBuf.String(), "deleted")
}
