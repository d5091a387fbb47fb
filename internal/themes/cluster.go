package themes

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/veilhq/veil-backend/internal/logger"
	"github.com/veilhq/veil-backend/internal/privacy"
)

// Post is one sanitized, pseudonymized submission entering the engine,
// together with the gate decision of its parent thread. The engine never
// receives raw text or raw identity.
type Post struct {
	ThreadID uuid.UUID
	Handle   string
	Text     string
	Channel  string
	Dept     string
	Thread   privacy.Decision
}

// Theme is one cluster. ExemplarQuotes holds only quotes from posts whose
// parent thread is individually visible; label and terms come from
// term-frequency keywording, not generative summarization.
type Theme struct {
	Label            string         `json:"label"`
	PostsCount       int            `json:"posts_count"`
	ParticipantCount int            `json:"participant_count"`
	TopTerms         []string       `json:"top_terms"`
	ExemplarQuotes   []string       `json:"exemplar_quotes"`
	Channels         []string       `json:"channels"`
	DeptHits         map[string]int `json:"dept_hits"`
}

const (
	maxExemplarQuotes = 3
	maxTopTerms       = 5
	kmeansIterations  = 10
)

type Engine struct {
	embedder Embedder
	log      *logger.Logger
}

func NewEngine(embedder Embedder, log *logger.Logger) *Engine {
	return &Engine{
		embedder: embedder,
		log:      log.With("component", "ThemeEngine"),
	}
}

// Cluster groups posts into themes. Empty input yields an empty slice, not
// an error. Quote gating per thread happens here; org-wide suppression is
// the caller's call since it depends on org-level counts.
func (e *Engine) Cluster(ctx context.Context, posts []Post) ([]Theme, error) {
	if len(posts) == 0 {
		return []Theme{}, nil
	}

	texts := make([]string, len(posts))
	for i, p := range posts {
		texts[i] = p.Text
	}
	vecs, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	members := make([]postVec, 0, len(posts))
	for i := range posts {
		if i < len(vecs) && len(vecs[i]) > 0 {
			members = append(members, postVec{Post: posts[i], Vec: normalizeUnit(vecs[i])})
		}
	}
	if len(members) == 0 {
		return []Theme{}, nil
	}

	k := chooseK(len(members))
	clusters := kmeans(members, k)

	themes := make([]Theme, 0, len(clusters))
	for _, cl := range clusters {
		if len(cl.Members) == 0 {
			continue
		}
		themes = append(themes, e.buildTheme(cl))
	}
	sort.Slice(themes, func(i, j int) bool { return themes[i].PostsCount > themes[j].PostsCount })
	return themes, nil
}

func (e *Engine) buildTheme(cl kCluster) Theme {
	terms := topTerms(cl.Members, maxTopTerms)

	handles := map[string]bool{}
	channels := map[string]bool{}
	deptHits := map[string]int{}
	quotes := make([]string, 0, maxExemplarQuotes)

	// Members closest to the centroid first, so exemplars are
	// representative rather than arbitrary.
	ordered := make([]postVec, len(cl.Members))
	copy(ordered, cl.Members)
	sort.Slice(ordered, func(i, j int) bool {
		return cosineSimilarity(ordered[i].Vec, cl.Centroid) > cosineSimilarity(ordered[j].Vec, cl.Centroid)
	})

	for _, m := range ordered {
		handles[m.Post.Handle] = true
		if m.Post.Channel != "" {
			channels[m.Post.Channel] = true
		}
		if m.Post.Dept != "" {
			deptHits[m.Post.Dept]++
		}
		// Visibility does not bypass sanitization: quotes are scrubbed
		// again even though ingest already did it once.
		if len(quotes) < maxExemplarQuotes && m.Post.Thread.Visible() {
			quotes = append(quotes, privacy.Sanitize(m.Post.Text))
		}
	}

	chList := make([]string, 0, len(channels))
	for ch := range channels {
		chList = append(chList, ch)
	}
	sort.Strings(chList)

	return Theme{
		Label:            labelFromTerms(terms),
		PostsCount:       len(cl.Members),
		ParticipantCount: len(handles),
		TopTerms:         terms,
		ExemplarQuotes:   quotes,
		Channels:         chList,
		DeptHits:         deptHits,
	}
}

type postVec struct {
	Post Post
	Vec  []float32
}

type kCluster struct {
	Centroid []float32
	Members  []postVec
}

func chooseK(n int) int {
	if n <= 1 {
		return 1
	}
	k := int(math.Round(math.Sqrt(float64(n))))
	if k < 2 {
		k = 2
	}
	if k > n {
		k = n
	}
	return k
}

// kmeans is deterministic: seeding starts from the first vector and picks
// the farthest remaining point each round, so a rebuild over the same posts
// lands on the same themes.
func kmeans(vecs []postVec, k int) []kCluster {
	if len(vecs) == 0 {
		return nil
	}
	if k < 1 {
		k = 1
	}
	if k > len(vecs) {
		k = len(vecs)
	}

	centroids := make([][]float32, 0, k)
	centroids = append(centroids, vecs[0].Vec)
	for len(centroids) < k {
		bestIdx := 0
		bestDist := -1.0
		for i := range vecs {
			d := 1.0
			for _, c := range centroids {
				dist := 1.0 - cosineSimilarity(vecs[i].Vec, c)
				if dist < d {
					d = dist
				}
			}
			if d > bestDist {
				bestDist = d
				bestIdx = i
			}
		}
		centroids = append(centroids, vecs[bestIdx].Vec)
	}

	var clusters []kCluster
	for iter := 0; iter < kmeansIterations; iter++ {
		clusters = make([]kCluster, k)
		for i := range clusters {
			clusters[i].Centroid = centroids[i]
		}
		for _, pv := range vecs {
			best := 0
			bestScore := -1.0
			for c := 0; c < k; c++ {
				if s := cosineSimilarity(pv.Vec, centroids[c]); s > bestScore {
					bestScore = s
					best = c
				}
			}
			clusters[best].Members = append(clusters[best].Members, pv)
		}
		moved := false
		for i := range clusters {
			if len(clusters[i].Members) == 0 {
				continue
			}
			next := meanVec(clusters[i].Members)
			if cosineSimilarity(next, centroids[i]) < 0.9999 {
				moved = true
			}
			centroids[i] = next
		}
		if !moved {
			break
		}
	}
	return clusters
}

func meanVec(members []postVec) []float32 {
	if len(members) == 0 {
		return nil
	}
	dims := len(members[0].Vec)
	acc := make([]float64, dims)
	for _, m := range members {
		for i := 0; i < dims && i < len(m.Vec); i++ {
			acc[i] += float64(m.Vec[i])
		}
	}
	out := make([]float32, dims)
	for i := range acc {
		out[i] = float32(acc[i] / float64(len(members)))
	}
	return normalizeUnit(out)
}

var tokenRE = regexp.MustCompile(`[a-z0-9]+`)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "are": true, "was": true, "have": true, "has": true,
	"not": true, "but": true, "you": true, "our": true, "its": true,
	"all": true, "can": true, "get": true, "too": true, "very": true,
	"just": true, "been": true, "more": true, "about": true, "when": true,
	"what": true, "they": true, "them": true, "were": true, "will": true,
	"would": true, "should": true, "could": true, "there": true, "here": true,
	"from": true, "into": true, "over": true, "than": true, "then": true,
	"email": true, "link": true, "phone": true, "redacted": true,
}

func Tokenize(text string) []string {
	out := make([]string, 0)
	for _, tok := range tokenRE.FindAllString(strings.ToLower(text), -1) {
		if len(tok) < 3 || stopwords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// topTerms ranks terms by how many member posts contain them.
func topTerms(members []postVec, limit int) []string {
	docFreq := map[string]int{}
	for _, m := range members {
		seen := map[string]bool{}
		for _, tok := range Tokenize(m.Post.Text) {
			if !seen[tok] {
				seen[tok] = true
				docFreq[tok]++
			}
		}
	}
	terms := make([]string, 0, len(docFreq))
	for t := range docFreq {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if docFreq[terms[i]] != docFreq[terms[j]] {
			return docFreq[terms[i]] > docFreq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > limit {
		terms = terms[:limit]
	}
	return terms
}

func labelFromTerms(terms []string) string {
	if len(terms) == 0 {
		return "general"
	}
	if len(terms) == 1 {
		return terms[0]
	}
	return terms[0] + " / " + terms[1]
}
