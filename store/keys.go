package store

import (
	"encoding/binary"
	"fmt"

	"github.com/c360studio/repolex/graph"
)

// Key layout. Every component is uvarint-length-prefixed so arbitrary
// term bytes cannot collide with separators.
//
//	'G' <graph>                          graph registry entry
//	'Q' <graph> 's' <subj> <pred> <obj>  SPO index
//	'Q' <graph> 'p' <pred> <obj> <subj>  POS index
//	'Q' <graph> 'o' <obj>  <subj> <pred> OSP index
//
// The object component is the term's canonical N-Triples form, which makes
// appends of identical triples idempotent at the key level.
const (
	prefixGraph byte = 'G'
	prefixQuad  byte = 'Q'
)

const (
	idxSPO byte = 's'
	idxPOS byte = 'p'
	idxOSP byte = 'o'
)

func appendComponent(key []byte, component string) []byte {
	key = binary.AppendUvarint(key, uint64(len(component)))
	return append(key, component...)
}

func readComponent(key []byte) (string, []byte, error) {
	n, size := binary.Uvarint(key)
	if size <= 0 || uint64(len(key)-size) < n {
		return "", nil, fmt.Errorf("corrupt key component")
	}
	return string(key[size : size+int(n)]), key[size+int(n):], nil
}

// graphKey is the registry key for a graph URI.
func graphKey(graphURI string) []byte {
	return appendComponent([]byte{prefixGraph}, graphURI)
}

// graphRegistryPrefix is the common prefix of every registry entry.
// Registry keys are length-prefixed, so prefix filtering happens on the
// decoded URI, not on raw key bytes.
func graphRegistryPrefix() []byte { return []byte{prefixGraph} }

// quadPrefix is the common prefix of all index entries of one graph.
func quadPrefix(graphURI string) []byte {
	return appendComponent([]byte{prefixQuad}, graphURI)
}

// indexPrefix narrows a graph's entries to one index.
func indexPrefix(graphURI string, idx byte) []byte {
	return append(quadPrefix(graphURI), idx)
}

// tripleKeys returns the three index keys for one triple in one graph.
func tripleKeys(graphURI string, t graph.Triple) [3][]byte {
	obj := t.Object.NTriples()

	spo := indexPrefix(graphURI, idxSPO)
	spo = appendComponent(spo, t.Subject)
	spo = appendComponent(spo, t.Predicate)
	spo = appendComponent(spo, obj)

	pos := indexPrefix(graphURI, idxPOS)
	pos = appendComponent(pos, t.Predicate)
	pos = appendComponent(pos, obj)
	pos = appendComponent(pos, t.Subject)

	osp := indexPrefix(graphURI, idxOSP)
	osp = appendComponent(osp, obj)
	osp = appendComponent(osp, t.Subject)
	osp = appendComponent(osp, t.Predicate)

	return [3][]byte{spo, pos, osp}
}

// decodeTriple reconstructs a triple from an index key of one graph.
func decodeTriple(graphURI string, key []byte) (graph.Triple, error) {
	rest := key[1:] // strip 'Q'
	g, rest, err := readComponent(rest)
	if err != nil {
		return graph.Triple{}, err
	}
	if g != graphURI {
		return graph.Triple{}, fmt.Errorf("key outside graph %s", graphURI)
	}
	if len(rest) == 0 {
		return graph.Triple{}, fmt.Errorf("truncated quad key")
	}
	idx := rest[0]
	rest = rest[1:]

	a, rest, err := readComponent(rest)
	if err != nil {
		return graph.Triple{}, err
	}
	b, rest, err := readComponent(rest)
	if err != nil {
		return graph.Triple{}, err
	}
	c, _, err := readComponent(rest)
	if err != nil {
		return graph.Triple{}, err
	}

	var subj, pred, obj string
	switch idx {
	case idxSPO:
		subj, pred, obj = a, b, c
	case idxPOS:
		pred, obj, subj = a, b, c
	case idxOSP:
		obj, subj, pred = a, b, c
	default:
		return graph.Triple{}, fmt.Errorf("unknown index %q", idx)
	}

	term, err := graph.ParseTerm(obj)
	if err != nil {
		return graph.Triple{}, err
	}
	return graph.Triple{Subject: subj, Predicate: pred, Object: term}, nil
}
