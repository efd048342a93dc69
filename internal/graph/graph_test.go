package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkfeed/internal/auth"
	"linkfeed/internal/db/memorystorage"
	"linkfeed/internal/models"
	"linkfeed/internal/pubsub"
)

type testEnv struct {
	schema *graphql.Schema
	db     *memorystorage.MemoryStorage
	auth   *auth.Auth
	events *pubsub.Broker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := memorystorage.New()
	require.NoError(t, err)

	authService := auth.New(db, []byte("test signing secret"), 0)
	events := pubsub.New(4)

	schema, err := graphql.ParseSchema(Schema, NewResolver(db, authService, events))
	require.NoError(t, err)

	return &testEnv{
		schema: schema,
		db:     db,
		auth:   authService,
		events: events,
	}
}

func (env *testEnv) exec(ctx context.Context, query string, variables map[string]interface{}) *graphql.Response {
	return env.schema.Exec(ctx, query, "", variables)
}

func (env *testEnv) signup(t *testing.T, name, email, password string) (string, *models.User) {
	t.Helper()

	result := env.exec(
		context.Background(),
		`
			mutation signup($email: String!, $password: String!, $name: String!) {
				signup(email: $email, password: $password, name: $name) {
					token
					user { id email }
				}
			}
		`,
		map[string]interface{}{"email": email, "password": password, "name": name},
	)
	require.Empty(t, result.Errors)

	var payload struct {
		Signup struct {
			Token string `json:"token"`
		} `json:"signup"`
	}
	require.NoError(t, json.Unmarshal(result.Data, &payload))
	require.NotEmpty(t, payload.Signup.Token)

	usr, err := env.db.FindUserByEmail(context.Background(), email)
	require.NoError(t, err)

	return payload.Signup.Token, usr
}

func TestInfo(t *testing.T) {
	env := newTestEnv(t)

	result := env.exec(context.Background(), `{ info }`, nil)
	require.Empty(t, result.Errors)
	assert.JSONEq(t, `{"info":"This is the API of a Hackernews Clone"}`, string(result.Data))
}

func TestSignupIssuesVerifiableToken(t *testing.T) {
	env := newTestEnv(t)

	token, usr := env.signup(t, "Alice", "alice@example.com", "wonderland")

	userID, err := env.auth.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, usr.ID, userID)

	// The stored credential is a hash, never the plaintext password.
	assert.NotEqual(t, "wonderland", usr.PasswordHash)
	require.NoError(t, auth.CheckPassword(usr.PasswordHash, "wonderland"))
}

func TestSignupDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)

	env.signup(t, "Alice", "alice@example.com", "wonderland")

	result := env.exec(
		context.Background(),
		`mutation { signup(email: "alice@example.com", password: "other", name: "Another Alice") { token } }`,
		nil,
	)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0].Error(), "email is already taken")
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	_, usr := env.signup(t, "Alice", "alice@example.com", "wonderland")

	t.Run("correct password issues an equivalent token", func(t *testing.T) {
		result := env.exec(
			context.Background(),
			`mutation { login(email: "alice@example.com", password: "wonderland") { token user { email } } }`,
			nil,
		)
		require.Empty(t, result.Errors)

		var payload struct {
			Login struct {
				Token string `json:"token"`
			} `json:"login"`
		}
		require.NoError(t, json.Unmarshal(result.Data, &payload))

		userID, err := env.auth.VerifyToken(payload.Login.Token)
		require.NoError(t, err)
		assert.Equal(t, usr.ID, userID)
	})

	t.Run("wrong password", func(t *testing.T) {
		result := env.exec(
			context.Background(),
			`mutation { login(email: "alice@example.com", password: "nope") { token } }`,
			nil,
		)
		require.NotEmpty(t, result.Errors)
		assert.Contains(t, result.Errors[0].Error(), "invalid password")
	})

	t.Run("unknown email", func(t *testing.T) {
		result := env.exec(
			context.Background(),
			`mutation { login(email: "bob@example.com", password: "whatever") { token } }`,
			nil,
		)
		require.NotEmpty(t, result.Errors)
		assert.Contains(t, result.Errors[0].Error(), "no such user found")
	})
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)

	_, usr := env.signup(t, "Alice", "alice@example.com", "wonderland")

	t.Run("unauthenticated", func(t *testing.T) {
		result := env.exec(context.Background(), `{ me { email } }`, nil)
		require.NotEmpty(t, result.Errors)
		assert.Contains(t, result.Errors[0].Error(), "unauthenticated")
	})

	t.Run("authenticated", func(t *testing.T) {
		ctx := auth.ContextWithUser(context.Background(), usr)
		result := env.exec(ctx, `{ me { email name } }`, nil)
		require.Empty(t, result.Errors)
		assert.JSONEq(t, `{"me":{"email":"alice@example.com","name":"Alice"}}`, string(result.Data))
	})
}

func TestPostRequiresAuthentication(t *testing.T) {
	env := newTestEnv(t)

	result := env.exec(
		context.Background(),
		`mutation { post(url: "https://example.com", description: "nope") { id } }`,
		nil,
	)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0].Error(), "unauthenticated")

	// No persistence side effect occurred.
	_, count, err := env.db.FindLinks(context.Background(), models.LinkFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPostCreatesLinkAndPublishesEvent(t *testing.T) {
	env := newTestEnv(t)

	_, usr := env.signup(t, "Alice", "alice@example.com", "wonderland")

	subscribeCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := env.events.Subscribe(subscribeCtx, pubsub.TopicNewLink)

	ctx := auth.ContextWithUser(context.Background(), usr)
	result := env.exec(
		ctx,
		`mutation { post(url: "https://news.example.com", description: "fresh") { id url postedBy { name } } }`,
		nil,
	)
	require.Empty(t, result.Errors)
	assert.Contains(t, string(result.Data), `"name":"Alice"`)

	links, err := env.db.FindLinksByUser(context.Background(), usr.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "https://news.example.com", links[0].URL)

	select {
	case event := <-events:
		assert.Equal(t, links[0].ID, event.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the newLink event")
	}
}

func TestFeed(t *testing.T) {
	env := newTestEnv(t)

	for i := 1; i <= 5; i++ {
		description := fmt.Sprintf("link %d", i)
		if i%2 == 1 {
			description = fmt.Sprintf("foo link %d", i)
		}
		_, err := env.db.CreateLink(
			context.Background(),
			description,
			fmt.Sprintf("https://example.com/%d", i),
			nil,
		)
		require.NoError(t, err)
	}

	t.Run("filter", func(t *testing.T) {
		result := env.exec(
			context.Background(),
			`{ feed(filter: "foo") { count links { description } } }`,
			nil,
		)
		require.Empty(t, result.Errors)

		var payload struct {
			Feed struct {
				Count int32 `json:"count"`
				Links []struct {
					Description string `json:"description"`
				} `json:"links"`
			} `json:"feed"`
		}
		require.NoError(t, json.Unmarshal(result.Data, &payload))
		assert.Equal(t, int32(3), payload.Feed.Count)
		for _, link := range payload.Feed.Links {
			assert.Contains(t, link.Description, "foo")
		}
	})

	t.Run("pagination keeps total count", func(t *testing.T) {
		result := env.exec(
			context.Background(),
			`{ feed(skip: 2, take: 1) { count links { description } } }`,
			nil,
		)
		require.Empty(t, result.Errors)
		assert.JSONEq(
			t,
			`{"feed":{"count":5,"links":[{"description":"foo link 3"}]}}`,
			string(result.Data),
		)
	})

	t.Run("order by url descending", func(t *testing.T) {
		result := env.exec(
			context.Background(),
			`{ feed(orderBy: {url: desc}, take: 1) { links { url } } }`,
			nil,
		)
		require.Empty(t, result.Errors)
		assert.JSONEq(
			t,
			`{"feed":{"links":[{"url":"https://example.com/5"}]}}`,
			string(result.Data),
		)
	})
}

func TestLinkPostedByIsNullableAndLazy(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.db.CreateLink(context.Background(), "ownerless", "https://example.com/orphan", nil)
	require.NoError(t, err)

	result := env.exec(context.Background(), `{ feed { links { description postedBy { name } } } }`, nil)
	require.Empty(t, result.Errors)
	assert.JSONEq(
		t,
		`{"feed":{"links":[{"description":"ownerless","postedBy":null}]}}`,
		string(result.Data),
	)
}

func TestSubscriptionReceivesOnlyEventsAfterSubscribe(t *testing.T) {
	env := newTestEnv(t)

	_, usr := env.signup(t, "Alice", "alice@example.com", "wonderland")
	ctx := auth.ContextWithUser(context.Background(), usr)

	post := func(url string) {
		result := env.exec(
			ctx,
			`mutation post($url: String!) { post(url: $url, description: "posted") { id } }`,
			map[string]interface{}{"url": url},
		)
		require.Empty(t, result.Errors)
	}

	// Posted before the subscription starts, must never be delivered.
	post("https://example.com/before")

	subscribeCtx, cancel := context.WithCancel(context.Background())
	responses, err := env.schema.Subscribe(
		subscribeCtx,
		`subscription { newLink { id url } }`,
		"",
		nil,
	)
	require.NoError(t, err)

	require.Eventually(
		t,
		func() bool { return env.events.Subscribers(pubsub.TopicNewLink) == 1 },
		2*time.Second,
		5*time.Millisecond,
	)

	post("https://example.com/after")

	select {
	case event := <-responses:
		payload, err := json.Marshal(event)
		require.NoError(t, err)
		assert.Contains(t, string(payload), "https://example.com/after")
		assert.NotContains(t, string(payload), "https://example.com/before")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the subscription event")
	}

	// Disconnecting removes the registration; later posts go nowhere.
	cancel()
	require.Eventually(
		t,
		func() bool { return env.events.Subscribers(pubsub.TopicNewLink) == 0 },
		2*time.Second,
		5*time.Millisecond,
	)
}
