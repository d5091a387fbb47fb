package themes

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/veilhq/veil-backend/internal/logger"
	"github.com/veilhq/veil-backend/internal/privacy"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return NewEngine(NewLocalEmbedder(), log)
}

func visiblePost(text, channel string) Post {
	return Post{
		ThreadID: uuid.New(),
		Handle:   uuid.NewString()[:8],
		Text:     text,
		Channel:  channel,
		Thread:   privacy.EvaluateCounts(6, 5),
	}
}

func suppressedPost(text, channel string) Post {
	p := visiblePost(text, channel)
	p.Thread = privacy.EvaluateCounts(2, 5)
	return p
}

func TestClusterEmptyInput(t *testing.T) {
	themes, err := testEngine(t).Cluster(context.Background(), nil)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	if len(themes) != 0 {
		t.Fatalf("empty input produced %d themes", len(themes))
	}
}

func TestClusterGroupsAndCounts(t *testing.T) {
	posts := []Post{
		visiblePost("the deployment pipeline keeps breaking on friday", "eng"),
		visiblePost("pipeline deployment failures block the whole team", "eng"),
		visiblePost("broken deployment pipeline again this sprint", "eng"),
		visiblePost("compensation feels below market for senior roles", "general"),
		visiblePost("salary bands and compensation are opaque", "general"),
		visiblePost("compensation review process takes forever", "general"),
	}
	themes, err := testEngine(t).Cluster(context.Background(), posts)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	if len(themes) == 0 {
		t.Fatal("no themes produced")
	}
	total := 0
	for _, th := range themes {
		total += th.PostsCount
		if th.Label == "" {
			t.Fatalf("theme with empty label: %+v", th)
		}
		if len(th.TopTerms) == 0 {
			t.Fatalf("theme with no top terms: %+v", th)
		}
	}
	if total != len(posts) {
		t.Fatalf("themes cover %d posts, want %d", total, len(posts))
	}
}

func TestClusterQuotesGatedPerThread(t *testing.T) {
	posts := []Post{
		suppressedPost("nobody talks about the oncall burden", "eng"),
		suppressedPost("oncall rotation is crushing the team", "eng"),
		suppressedPost("oncall pages every single night", "eng"),
	}
	themes, err := testEngine(t).Cluster(context.Background(), posts)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	for _, th := range themes {
		if len(th.ExemplarQuotes) != 0 {
			t.Fatalf("suppressed threads leaked quotes: %+v", th.ExemplarQuotes)
		}
		if th.PostsCount == 0 {
			t.Fatalf("suppressed posts dropped from counts: %+v", th)
		}
	}
}

func TestClusterQuotesSanitizedEvenWhenVisible(t *testing.T) {
	posts := []Post{
		visiblePost("ping me at lead@example.com about the roadmap", "eng"),
		visiblePost("the roadmap changes with no notice", "eng"),
		visiblePost("roadmap priorities flip every week", "eng"),
	}
	themes, err := testEngine(t).Cluster(context.Background(), posts)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	sawQuote := false
	for _, th := range themes {
		for _, q := range th.ExemplarQuotes {
			sawQuote = true
			if strings.Contains(q, "lead@example.com") {
				t.Fatalf("quote leaked an email address: %q", q)
			}
		}
	}
	if !sawQuote {
		t.Fatal("visible threads produced no quotes")
	}
}

func TestClusterExemplarQuoteBound(t *testing.T) {
	posts := make([]Post, 0, 12)
	for i := 0; i < 12; i++ {
		posts = append(posts, visiblePost("meeting overload is eating the calendar again", "ops"))
	}
	themes, err := testEngine(t).Cluster(context.Background(), posts)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	for _, th := range themes {
		if len(th.ExemplarQuotes) > maxExemplarQuotes {
			t.Fatalf("theme shows %d quotes, cap is %d", len(th.ExemplarQuotes), maxExemplarQuotes)
		}
	}
}

func TestClusterDeterministic(t *testing.T) {
	posts := []Post{
		visiblePost("the deployment pipeline keeps breaking on friday", "eng"),
		visiblePost("compensation feels below market for senior roles", "general"),
		visiblePost("pipeline deployment failures block the whole team", "eng"),
		visiblePost("salary bands and compensation are opaque", "general"),
	}
	e := testEngine(t)
	first, err := e.Cluster(context.Background(), posts)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	second, err := e.Cluster(context.Background(), posts)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("rebuild changed theme count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Label != second[i].Label || first[i].PostsCount != second[i].PostsCount {
			t.Fatalf("rebuild changed theme %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestTokenizeDropsStopwordsAndPlaceholders(t *testing.T) {
	toks := Tokenize("the [email] and the [phone] for deployment")
	for _, tok := range toks {
		if tok == "the" || tok == "email" || tok == "phone" {
			t.Fatalf("Tokenize kept %q", tok)
		}
	}
	if len(toks) != 1 || toks[0] != "deployment" {
		t.Fatalf("Tokenize=%v, want [deployment]", toks)
	}
}
