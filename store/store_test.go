package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/repolex/apperror"
	"github.com/c360studio/repolex/graph"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func tr(s, p string, o graph.Term) graph.Triple { return graph.NewTriple(s, p, o) }

const (
	gStable = "http://repolex.org/repo/acme/lib/functions/stable"
	gImpl   = "http://repolex.org/repo/acme/lib/functions/implementations"
	pName   = "http://rdf.webofcode.org/woc/canonicalName"
	pLines  = "http://rdf.webofcode.org/woc/bodyLines"
)

func TestAppendAndCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.AppendToGraph(ctx, gStable, []graph.Triple{
		tr("function:acme/lib/a", pName, graph.Lit("a")),
		tr("function:acme/lib/b", pName, graph.Lit("b")),
	})
	require.NoError(t, err)

	n, err := s.CountTriples(gStable)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAppendIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	triples := []graph.Triple{tr("function:acme/lib/a", pName, graph.Lit("a"))}
	require.NoError(t, s.AppendToGraph(ctx, gStable, triples))
	require.NoError(t, s.AppendToGraph(ctx, gStable, triples))

	n, err := s.CountTriples(gStable)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "duplicate appends must not duplicate triples")
}

func TestUpsertReplacesWholeGraph(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendToGraph(ctx, gImpl, []graph.Triple{
		tr("function:acme/lib/a#v1", pLines, graph.IntLit(10)),
		tr("function:acme/lib/b#v1", pLines, graph.IntLit(20)),
	}))

	require.NoError(t, s.UpsertGraph(ctx, gImpl, []graph.Triple{
		tr("function:acme/lib/a#v1", pLines, graph.IntLit(12)),
	}))

	n, err := s.CountTriples(gImpl)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDropGraphIsNoOpWhenAbsent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.DropGraph(context.Background(), "http://repolex.org/absent"))
}

func TestDropGraphRemovesListing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendToGraph(ctx, gStable, []graph.Triple{
		tr("function:acme/lib/a", pName, graph.Lit("a")),
	}))
	require.NoError(t, s.DropGraph(ctx, gStable))

	names, err := s.ListGraphs("")
	require.NoError(t, err)
	assert.Empty(t, names)

	exists, err := s.GraphExists(gStable)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestListGraphsByPrefix(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	other := "http://repolex.org/repo/beta/tool/functions/stable"
	require.NoError(t, s.AppendToGraph(ctx, gStable, nil))
	require.NoError(t, s.AppendToGraph(ctx, other, nil))

	names, err := s.ListGraphs("http://repolex.org/repo/acme/lib/")
	require.NoError(t, err)
	assert.Equal(t, []string{gStable}, names)
}

func TestQuerySelect(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendToGraph(ctx, gStable, []graph.Triple{
		tr("function:acme/lib/a", "http://www.w3.org/1999/02/22-rdf-syntax-ns#type",
			graph.IRI("http://rdf.webofcode.org/woc/Function")),
		tr("function:acme/lib/b", "http://www.w3.org/1999/02/22-rdf-syntax-ns#type",
			graph.IRI("http://rdf.webofcode.org/woc/Function")),
	}))

	res, err := s.Query(ctx, `
		PREFIX woc: <http://rdf.webofcode.org/woc/>
		SELECT (COUNT(*) AS ?n) WHERE {
			GRAPH <`+gStable+`> { ?f a woc:Function }
		}`, 0)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "2", res.Rows[0]["n"].Value)
}

func TestQueryRejectsUpdateForms(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Query(context.Background(), `DROP GRAPH <`+gStable+`>`, 0)
	require.Error(t, err)
	assert.Equal(t, apperror.KindSecurity, apperror.KindOf(err))
}

func TestQuerySyntaxErrorHasPosition(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Query(context.Background(), `SELECT ?s WHERE { ?s ?p }`, 0)
	require.Error(t, err)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	assert.Contains(t, err.Error(), "offset")
}

func TestQueryTimeout(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var triples []graph.Triple
	for i := 0; i < 200; i++ {
		triples = append(triples, tr("e:s", "e:p", graph.IntLit(i)))
	}
	require.NoError(t, s.AppendToGraph(ctx, gStable, triples))

	_, err := s.Query(ctx, `SELECT ?a WHERE { ?a ?b ?c . ?d ?e ?f . ?g ?h ?i }`, time.Nanosecond)
	require.Error(t, err)
	assert.Equal(t, apperror.KindStore, apperror.KindOf(err))
}

func TestDeleteWhere(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	belongs := "http://rdf.webofcode.org/woc/belongsToVersion"

	require.NoError(t, s.AppendToGraph(ctx, gImpl, []graph.Triple{
		tr("function:acme/lib/a#v1", belongs, graph.Lit("v1")),
		tr("function:acme/lib/a#v2", belongs, graph.Lit("v2")),
	}))

	v1 := graph.Lit("v1")
	n, err := s.DeleteWhere(ctx, gImpl, nil, &belongs, &v1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	total, err := s.CountTriples(gImpl)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestWriterTokenSerializesUpserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	w, release := s.AcquireWriter()
	require.NoError(t, w.AppendToGraph(ctx, gStable, []graph.Triple{
		tr("function:acme/lib/a", pName, graph.Lit("a")),
	}))

	done := make(chan error, 1)
	go func() {
		done <- s.AppendToGraph(ctx, gStable, []graph.Triple{
			tr("function:acme/lib/b", pName, graph.Lit("b")),
		})
	}()

	select {
	case <-done:
		t.Fatal("second writer proceeded while token held")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	require.NoError(t, <-done)

	n, err := s.CountTriples(gStable)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
