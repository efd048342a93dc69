package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationIsSubscription(t *testing.T) {
	tests := []struct {
		name          string
		query         string
		operationName string
		want          bool
	}{
		{
			name:  "anonymous shorthand query",
			query: `{ feed { count } }`,
			want:  false,
		},
		{
			name:  "named query",
			query: `query Feed { feed { count } }`,
			want:  false,
		},
		{
			name:  "mutation",
			query: `mutation { post(url: "https://example.com", description: "x") { id } }`,
			want:  false,
		},
		{
			name:  "anonymous subscription",
			query: `subscription { newLink { id } }`,
			want:  true,
		},
		{
			name:  "named subscription",
			query: `subscription OnNewLink { newLink { id url } }`,
			want:  true,
		},
		{
			name:  "subscription with variables and directive",
			query: `subscription OnNewLink($verbose: Boolean!) @live { newLink { id url @include(if: $verbose) } }`,
			want:  true,
		},
		{
			name:          "operation name selects the subscription",
			query:         `query Feed { feed { count } } subscription OnNewLink { newLink { id } }`,
			operationName: "OnNewLink",
			want:          true,
		},
		{
			name:          "operation name selects the query",
			query:         `query Feed { feed { count } } subscription OnNewLink { newLink { id } }`,
			operationName: "Feed",
			want:          false,
		},
		{
			name:  "fragment before the operation",
			query: `fragment linkFields on Link { id url } query Feed { feed { links { ...linkFields } } }`,
			want:  false,
		},
		{
			name: "comment mentioning subscription",
			query: `# subscription is handled elsewhere
				query Feed { feed { count } }`,
			want: false,
		},
		{
			name:  "string literal mentioning subscription",
			query: `{ feed(filter: "subscription { newLink }") { count } }`,
			want:  false,
		},
		{
			name:  "field named like the keyword stays nested",
			query: `query Check { subscriptionStatus { subscription } }`,
			want:  false,
		},
		{
			name: "block string mentioning subscription",
			query: `{ feed(filter: """
				subscription { newLink }
				""") { count } }`,
			want: false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(
				t,
				test.want,
				operationIsSubscription(test.query, test.operationName),
			)
		})
	}
}
