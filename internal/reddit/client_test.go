package reddit

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(ClientConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Logger:  testLogger(),
	})
}

func TestFetchSubredditPostsBareArray(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if got := r.URL.Query().Get("subreddit"); got != "smallbusiness" {
			t.Errorf("unexpected subreddit param %q", got)
		}
		w.Write([]byte(`[{"id":"a1","title":"Hiring is hard","score":42,"num_comments":10}]`))
	})

	posts, err := client.FetchSubredditPosts(context.Background(), "smallbusiness", "month", "top", 100)
	if err != nil {
		t.Fatalf("FetchSubredditPosts returned error: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != "a1" || posts[0].Score != 42 {
		t.Fatalf("unexpected posts: %+v", posts)
	}
	if posts[0].Subreddit != "smallbusiness" {
		t.Fatalf("expected subreddit backfilled, got %q", posts[0].Subreddit)
	}
}

func TestFetchSubredditPostsDataArray(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"b1","title":"t","score":5,"num_comments":2}]}`))
	})

	posts, err := client.FetchSubredditPosts(context.Background(), "x", "month", "top", 0)
	if err != nil {
		t.Fatalf("FetchSubredditPosts returned error: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != "b1" {
		t.Fatalf("unexpected posts: %+v", posts)
	}
}

func TestFetchSubredditPostsPostsArray(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"posts":[{"id":"c1","title":"t","content_snippet":"snippet text"}]}`))
	})

	posts, err := client.FetchSubredditPosts(context.Background(), "x", "month", "top", 0)
	if err != nil {
		t.Fatalf("FetchSubredditPosts returned error: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != "c1" || posts[0].SelfText != "snippet text" {
		t.Fatalf("unexpected posts: %+v", posts)
	}
}

func TestFetchSubredditPostsListingShape(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"children":[
			{"data":{"id":"d1","title":"one","score":9,"num_comments":3,"stickied":true}},
			{"data":{"id":"d2","title":"two","score":7,"num_comments":1}}
		]}}`))
	})

	posts, err := client.FetchSubredditPosts(context.Background(), "x", "month", "top", 0)
	if err != nil {
		t.Fatalf("FetchSubredditPosts returned error: %v", err)
	}
	if len(posts) != 2 || posts[0].ID != "d1" || !posts[0].Stickied || posts[1].ID != "d2" {
		t.Fatalf("unexpected posts: %+v", posts)
	}
}

func TestFetchSubredditPostsUnrecognizedShape(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":"layout"}`))
	})

	if _, err := client.FetchSubredditPosts(context.Background(), "x", "month", "top", 0); err == nil {
		t.Fatal("expected error for unrecognized shape")
	}
}

func TestFetchCommentsWalksNestedTree(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("url"); got != "https://reddit.com/r/x/p1" {
			t.Errorf("unexpected url param %q", got)
		}
		w.Write([]byte(`{"data":{"children":[
			{"data":{"body":"first comment","replies":{"data":{"children":[
				{"data":{"body":"nested reply"}}
			]}}}},
			{"data":{"body":"[deleted]"}},
			{"data":{"body":"[removed]"}},
			{"data":{"body":"second comment"}}
		]}}`))
	})

	comments, err := client.FetchComments(context.Background(), "https://reddit.com/r/x/p1")
	if err != nil {
		t.Fatalf("FetchComments returned error: %v", err)
	}
	want := []string{"first comment", "nested reply", "second comment"}
	if len(comments) != len(want) {
		t.Fatalf("expected %d comments, got %v", len(want), comments)
	}
	for i, c := range want {
		if comments[i] != c {
			t.Fatalf("comment %d: expected %q, got %q", i, c, comments[i])
		}
	}
}

func TestFetchCommentsCapsAtFive(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"body":"c1"},{"body":"c2"},{"body":"c3"},
			{"body":"c4"},{"body":"c5"},{"body":"c6"},{"body":"c7"}
		]`))
	})

	comments, err := client.FetchComments(context.Background(), "u")
	if err != nil {
		t.Fatalf("FetchComments returned error: %v", err)
	}
	if len(comments) != 5 {
		t.Fatalf("expected comment cap of 5, got %d", len(comments))
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	attempts := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"id":"r1","title":"t"}]`))
	})

	posts, err := client.FetchSubredditPosts(context.Background(), "x", "month", "top", 0)
	if err != nil {
		t.Fatalf("FetchSubredditPosts returned error after retries: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if len(posts) != 1 || posts[0].ID != "r1" {
		t.Fatalf("unexpected posts: %+v", posts)
	}
}
