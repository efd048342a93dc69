// Package jsondb provides a JSON-file-backed implementation of the storage
// facade. All data lives in an in-memory cache that is loaded on startup and
// flushed to disk on Close. It backs local development; the memory storage
// reuses its cache without a file.
package jsondb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/thoas/go-funk"

	"linkfeed/internal/models"
)

// CacheStruct is the serialized shape of the database.
type CacheStruct struct {
	Users      []models.User
	Links      []models.Link
	NextUserID int64
	NextLinkID int64
}

// JSONDB keeps users and links in memory and optionally persists them to a
// JSON file. Safe for concurrent use.
type JSONDB struct {
	fileName string

	mu    sync.RWMutex
	Cache CacheStruct
}

// NewCache returns an empty cache with identity counters initialized.
func NewCache() CacheStruct {
	return CacheStruct{
		Users:      []models.User{},
		Links:      []models.Link{},
		NextUserID: 1,
		NextLinkID: 1,
	}
}

func initDBFile(fileName string) error {
	jsonData, err := json.MarshalIndent(NewCache(), "", "\t")
	if err != nil {
		return err
	}

	return os.WriteFile(fileName, jsonData, 0644)
}

func parseJSONFile(fileName string, cache *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)

	return decoder.Decode(cache)
}

func writeToJSONFile(fileName string, cache CacheStruct) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}

	return os.WriteFile(fileName, jsonData, 0644)
}

// New loads the database from the given file, creating it when absent.
func New(fileName string) (*JSONDB, error) {
	db := &JSONDB{
		fileName: fileName,
		Cache:    NewCache(),
	}

	err := parseJSONFile(db.fileName, &db.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		err := initDBFile(fileName)
		if err != nil {
			return nil, err
		}
		err = parseJSONFile(db.fileName, &db.Cache)
		if err != nil {
			return nil, err
		}
	}

	return db, nil
}

// CreateUser stores a new user. The email must be unique.
func (db *JSONDB) CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, usr := range db.Cache.Users {
		if usr.Email == email {
			return nil, models.ErrEmailTaken
		}
	}

	usr := models.User{
		ID:           db.Cache.NextUserID,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	db.Cache.NextUserID++
	db.Cache.Users = append(db.Cache.Users, usr)

	return &usr, nil
}

// FindUserByID returns the user with the given id or models.ErrNotFound.
func (db *JSONDB) FindUserByID(ctx context.Context, id int64) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, usr := range db.Cache.Users {
		if usr.ID == id {
			found := usr
			return &found, nil
		}
	}

	return nil, models.ErrNotFound
}

// FindUserByEmail returns the user with the given email or models.ErrNotFound.
func (db *JSONDB) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, usr := range db.Cache.Users {
		if usr.Email == email {
			found := usr
			return &found, nil
		}
	}

	return nil, models.ErrNotFound
}

// CreateLink stores a new link, optionally owned by a user.
func (db *JSONDB) CreateLink(ctx context.Context, description, url string, postedByID *int64) (*models.Link, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	link := models.Link{
		ID:          db.Cache.NextLinkID,
		Description: description,
		URL:         url,
		PostedByID:  postedByID,
		CreatedAt:   time.Now().UTC(),
	}
	db.Cache.NextLinkID++
	db.Cache.Links = append(db.Cache.Links, link)

	return &link, nil
}

// FindLinks returns one page of links matching the filter plus the total
// match count. Without an explicit order the insertion order is kept.
func (db *JSONDB) FindLinks(ctx context.Context, filter models.LinkFilter) ([]models.Link, int32, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	matched := db.Cache.Links
	if filter.Contains != nil {
		needle := *filter.Contains
		matched = funk.Filter(matched, func(link models.Link) bool {
			return strings.Contains(link.Description, needle) || strings.Contains(link.URL, needle)
		}).([]models.Link)
	}

	count := int32(len(matched))

	page := make([]models.Link, len(matched))
	copy(page, matched)

	if filter.OrderBy != nil {
		orderLinks(page, *filter.OrderBy)
	}

	if filter.Skip != nil {
		skip := int(*filter.Skip)
		if skip >= len(page) {
			return []models.Link{}, count, nil
		}
		if skip > 0 {
			page = page[skip:]
		}
	}

	if filter.Take != nil {
		take := int(*filter.Take)
		if take < len(page) {
			if take < 0 {
				take = 0
			}
			page = page[:take]
		}
	}

	return page, count, nil
}

// FindLinksByUser returns every link owned by the given user.
func (db *JSONDB) FindLinksByUser(ctx context.Context, userID int64) ([]models.Link, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return funk.Filter(db.Cache.Links, func(link models.Link) bool {
		return link.PostedByID != nil && *link.PostedByID == userID
	}).([]models.Link), nil
}

// Ping reports storage availability; the cache is always available.
func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

// Close flushes the cache to the backing file.
func (db *JSONDB) Close() error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return writeToJSONFile(db.fileName, db.Cache)
}

func orderLinks(links []models.Link, order models.LinkOrder) {
	desc := order.Direction == models.SortDesc

	sort.SliceStable(links, func(i, j int) bool {
		var less bool
		switch order.Field {
		case models.OrderByDescription:
			less = links[i].Description < links[j].Description
		case models.OrderByURL:
			less = links[i].URL < links[j].URL
		default:
			less = links[i].CreatedAt.Before(links[j].CreatedAt)
		}
		if desc {
			return !less && !linkFieldsEqual(links[i], links[j], order.Field)
		}

		return less
	})
}

func linkFieldsEqual(a, b models.Link, field models.LinkOrderField) bool {
	switch field {
	case models.OrderByDescription:
		return a.Description == b.Description
	case models.OrderByURL:
		return a.URL == b.URL
	default:
		return a.CreatedAt.Equal(b.CreatedAt)
	}
}
