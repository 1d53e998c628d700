package scene

import (
	"sort"
	"sync"
	"time"

	"github.com/sambeau/scenery/pkg/scene/ast"
	"github.com/sambeau/scenery/pkg/scene/cst"
	"github.com/sambeau/scenery/pkg/scene/errors"
	"github.com/sambeau/scenery/pkg/scene/tokens"
)

// Document is the last successful parse of one document.
type Document struct {
	URI     string
	CST     *cst.Tree
	AST     *ast.Tree
	Updated time.Time
}

// Registry maps document URIs to their last successful parse. A URI whose
// latest text failed to parse has no entry.
type Registry struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{docs: make(map[string]*Document)}
}

// Update records res for uri. A failed result removes any entry so stale
// trees are never served. Reports whether uri now has an entry.
func (r *Registry) Update(uri string, res *Result) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !res.OK() {
		delete(r.docs, uri)
		return false
	}
	r.docs[uri] = &Document{URI: uri, CST: res.CST, AST: res.AST, Updated: time.Now()}
	return true
}

// Get returns the entry for uri.
func (r *Registry) Get(uri string) (*Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[uri]
	return doc, ok
}

// Delete forgets uri.
func (r *Registry) Delete(uri string) {
	r.mu.Lock()
	delete(r.docs, uri)
	r.mu.Unlock()
}

// URIs returns the registered URIs, sorted.
func (r *Registry) URIs() []string {
	r.mu.RLock()
	uris := make([]string, 0, len(r.docs))
	for uri := range r.docs {
		uris = append(uris, uri)
	}
	r.mu.RUnlock()
	sort.Strings(uris)
	return uris
}

// Len returns the number of registered documents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// SemanticTokens returns the encoded highlighting of uri's last successful
// parse, or false when there is none.
func (r *Registry) SemanticTokens(uri string) ([]uint32, bool) {
	doc, ok := r.Get(uri)
	if !ok {
		return nil, false
	}
	return tokens.Project(doc.AST), true
}

// Analysis is the outcome of Analyze: the parse result plus what a host
// needs to publish.
type Analysis struct {
	URI         string
	Result      *Result
	Diagnostics []*errors.SceneError
	Tokens      []uint32
}

// Analyze parses text, updates reg under uri and returns the diagnostics to
// publish. Tokens is nil unless the text built a scene.
func Analyze(reg *Registry, uri, text string, opts ...Option) *Analysis {
	res := Parse(text, opts...)
	a := &Analysis{URI: uri, Result: res}
	for _, err := range res.Errors() {
		a.Diagnostics = append(a.Diagnostics, err.WithFile(uri))
	}
	if reg.Update(uri, res) {
		a.Tokens = tokens.Project(res.AST)
	}
	return a
}
