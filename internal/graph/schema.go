package graph

// Schema is the GraphQL schema surface served at /graphql.
const Schema = `
	schema {
		query: Query
		mutation: Mutation
		subscription: Subscription
	}

	input LinkOrderByInput {
		description: Sort
		url: Sort
		createdAt: Sort
	}

	enum Sort {
		asc
		desc
	}

	type Feed {
		links: [Link!]!
		count: Int!
	}

	type Query {
		info: String!
		feed(filter: String, skip: Int, take: Int, orderBy: LinkOrderByInput): Feed!
		me: User!
	}

	type AuthPayload {
		token: String!
		user: User!
	}

	type User {
		id: ID!
		name: String!
		email: String!
		links: [Link!]!
	}

	type Mutation {
		post(url: String!, description: String!): Link!
		signup(email: String!, password: String!, name: String!): AuthPayload
		login(email: String!, password: String!): AuthPayload
	}

	type Link {
		id: ID!
		description: String!
		url: String!
		postedBy: User
	}

	type Subscription {
		newLink: Link!
	}
`
