package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsPublisher/internal/domain"
)

func TestFetchFollowsBoundedRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/hop/", func(w http.ResponseWriter, r *http.Request) {
		var n int
		fmt.Sscanf(r.URL.Path, "/hop/%d", &n)
		if n == 0 {
			_, _ = w.Write([]byte("landed"))
			return
		}
		http.Redirect(w, r, fmt.Sprintf("/hop/%d", n-1), http.StatusFound)
	})

	f := NewFetcher(server.Client())
	ctx := context.Background()

	body, err := f.Fetch(ctx, server.URL+"/hop/5")
	require.NoError(t, err)
	assert.Equal(t, "landed", string(body))

	_, err = f.Fetch(ctx, server.URL+"/hop/6")
	assert.ErrorIs(t, err, domain.ErrTooManyRedirects)
}

func TestArticleImagesPrefersOpenGraph(t *testing.T) {
	t.Parallel()

	const page = `<html><head>
	<meta property="og:image" content="https://cdn.example.com/lead.jpg">
	</head><body>
	<img src="/relative/skipped.jpg">
	<img src="https://cdn.example.com/inline.png?w=800">
	<img src="https://cdn.example.com/tracker.gif">
	<img src="https://cdn.example.com/lead.jpg">
	</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	f := NewFetcher(server.Client())
	images, err := f.ArticleImages(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://cdn.example.com/lead.jpg",
		"https://cdn.example.com/inline.png?w=800",
	}, images, "og:image first, relative URLs and non-image extensions dropped, duplicates collapsed")
}

func TestArticleTextStripsChrome(t *testing.T) {
	t.Parallel()

	const page = `<html><head><style>p{}</style><script>var x;</script></head>
	<body><nav>menu</nav><header>masthead</header>
	<p>Bitcoin   rallied
	today.</p><footer>legal</footer></body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	f := NewFetcher(server.Client())
	text, err := f.ArticleText(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, "Bitcoin rallied today.", text)
}
