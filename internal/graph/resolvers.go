// Package graph implements the GraphQL resolver set: query, mutation and
// subscription root fields plus the lazy User.links and Link.postedBy
// relation fields.
package graph

import (
	"context"
	"strconv"

	graphql "github.com/graph-gophers/graphql-go"

	"linkfeed/internal/auth"
	"linkfeed/internal/db/storage"
	"linkfeed/internal/models"
	"linkfeed/internal/pubsub"
)

type tokenIssuer interface {
	IssueToken(userID int64) (string, error)
}

type broker interface {
	Publish(topic string, link models.Link)
	Subscribe(ctx context.Context, topic string) <-chan models.Link
}

// Resolver provides dependencies for the GraphQL resolvers.
type Resolver struct {
	db     storage.Storage
	auth   tokenIssuer
	events broker
}

// NewResolver creates the root resolver with its dependencies.
func NewResolver(db storage.Storage, auth tokenIssuer, events broker) *Resolver {
	return &Resolver{
		db:     db,
		auth:   auth,
		events: events,
	}
}

// Info resolves Query.info.
func (r *Resolver) Info() string {
	return "This is the API of a Hackernews Clone"
}

type linkOrderByInput struct {
	Description *string
	URL         *string
	CreatedAt   *string
}

type feedArgs struct {
	Filter  *string
	Skip    *int32
	Take    *int32
	OrderBy *linkOrderByInput
}

// Feed resolves Query.feed: a filtered, sorted, paginated link listing with
// the total match count.
func (r *Resolver) Feed(ctx context.Context, args feedArgs) (*feedResolver, error) {
	filter := models.LinkFilter{
		Contains: args.Filter,
		Skip:     args.Skip,
		Take:     args.Take,
		OrderBy:  linkOrder(args.OrderBy),
	}

	links, count, err := r.db.FindLinks(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &feedResolver{r: r, links: links, count: count}, nil
}

// Me resolves Query.me. It requires an authenticated context.
func (r *Resolver) Me(ctx context.Context) (*userResolver, error) {
	usr := auth.UserFromContext(ctx)
	if usr == nil {
		return nil, models.ErrUnauthenticated
	}

	return &userResolver{r: r, usr: *usr}, nil
}

// Post resolves Mutation.post: creates a link owned by the current user and
// publishes it on the newLink channel.
func (r *Resolver) Post(ctx context.Context, args struct{ URL, Description string }) (*linkResolver, error) {
	usr := auth.UserFromContext(ctx)
	if usr == nil {
		return nil, models.ErrUnauthenticated
	}

	link, err := r.db.CreateLink(ctx, args.Description, args.URL, &usr.ID)
	if err != nil {
		return nil, err
	}

	r.events.Publish(pubsub.TopicNewLink, *link)

	return &linkResolver{r: r, link: *link}, nil
}

// Signup resolves Mutation.signup: hashes the password, creates the user and
// issues a token for it.
func (r *Resolver) Signup(ctx context.Context, args struct{ Email, Password, Name string }) (*authPayloadResolver, error) {
	passwordHash, err := auth.HashPassword(args.Password)
	if err != nil {
		return nil, err
	}

	usr, err := r.db.CreateUser(ctx, args.Name, args.Email, passwordHash)
	if err != nil {
		return nil, err
	}

	token, err := r.auth.IssueToken(usr.ID)
	if err != nil {
		return nil, err
	}

	return &authPayloadResolver{r: r, token: token, usr: *usr}, nil
}

// Login resolves Mutation.login: checks the password against the stored hash
// and issues a token on success.
func (r *Resolver) Login(ctx context.Context, args struct{ Email, Password string }) (*authPayloadResolver, error) {
	usr, err := r.db.FindUserByEmail(ctx, args.Email)
	if err != nil {
		return nil, err
	}

	if err := auth.CheckPassword(usr.PasswordHash, args.Password); err != nil {
		return nil, err
	}

	token, err := r.auth.IssueToken(usr.ID)
	if err != nil {
		return nil, err
	}

	return &authPayloadResolver{r: r, token: token, usr: *usr}, nil
}

// NewLink resolves Subscription.newLink as a stream of links created after
// the subscription started. The subscriber is unregistered as soon as the
// client context is canceled.
func (r *Resolver) NewLink(ctx context.Context) (<-chan *linkResolver, error) {
	events := r.events.Subscribe(ctx, pubsub.TopicNewLink)

	out := make(chan *linkResolver)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case link, ok := <-events:
				if !ok {
					return
				}
				select {
				case out <- &linkResolver{r: r, link: link}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

type userResolver struct {
	r   *Resolver
	usr models.User
}

func (u *userResolver) ID() graphql.ID {
	return graphql.ID(strconv.FormatInt(u.usr.ID, 10))
}

func (u *userResolver) Name() string {
	return u.usr.Name
}

func (u *userResolver) Email() string {
	return u.usr.Email
}

// Links resolves the user's links lazily, on field access.
func (u *userResolver) Links(ctx context.Context) ([]*linkResolver, error) {
	links, err := u.r.db.FindLinksByUser(ctx, u.usr.ID)
	if err != nil {
		return nil, err
	}

	return wrapLinks(u.r, links), nil
}

type linkResolver struct {
	r    *Resolver
	link models.Link
}

func (l *linkResolver) ID() graphql.ID {
	return graphql.ID(strconv.FormatInt(l.link.ID, 10))
}

func (l *linkResolver) Description() string {
	return l.link.Description
}

func (l *linkResolver) URL() string {
	return l.link.URL
}

// PostedBy returns nil for ownerless links, otherwise resolves the owner
// lazily via storage.
func (l *linkResolver) PostedBy(ctx context.Context) (*userResolver, error) {
	if l.link.PostedByID == nil {
		return nil, nil
	}

	usr, err := l.r.db.FindUserByID(ctx, *l.link.PostedByID)
	if err != nil {
		return nil, err
	}

	return &userResolver{r: l.r, usr: *usr}, nil
}

type feedResolver struct {
	r     *Resolver
	links []models.Link
	count int32
}

func (f *feedResolver) Links() []*linkResolver {
	return wrapLinks(f.r, f.links)
}

func (f *feedResolver) Count() int32 {
	return f.count
}

type authPayloadResolver struct {
	r     *Resolver
	token string
	usr   models.User
}

func (p *authPayloadResolver) Token() string {
	return p.token
}

func (p *authPayloadResolver) User() *userResolver {
	return &userResolver{r: p.r, usr: p.usr}
}

func wrapLinks(r *Resolver, links []models.Link) []*linkResolver {
	result := make([]*linkResolver, 0, len(links))
	for _, link := range links {
		result = append(result, &linkResolver{r: r, link: link})
	}

	return result
}

// linkOrder collapses the GraphQL orderBy input to the single-field sort the
// storage layer supports. When several fields are set, the first of
// description, url, createdAt wins.
func linkOrder(input *linkOrderByInput) *models.LinkOrder {
	if input == nil {
		return nil
	}

	if input.Description != nil {
		return &models.LinkOrder{Field: models.OrderByDescription, Direction: models.SortDirection(*input.Description)}
	}
	if input.URL != nil {
		return &models.LinkOrder{Field: models.OrderByURL, Direction: models.SortDirection(*input.URL)}
	}
	if input.CreatedAt != nil {
		return &models.LinkOrder{Field: models.OrderByCreatedAt, Direction: models.SortDirection(*input.CreatedAt)}
	}

	return nil
}
