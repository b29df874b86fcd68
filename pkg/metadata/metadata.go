package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/galxe/blobs3/pkg/storage"
)

const contentTypeJSON = "application/json"

var (
	// ErrTraitExists is returned by AddTrait when a unique trait type is already present
	ErrTraitExists = errors.New("trait type already exists")
	// ErrInvalidURI is returned for URIs without a bucket and key
	ErrInvalidURI = errors.New("invalid storage uri")
)

// Metadata is an ERC721-style JSON metadata document
type Metadata map[string]interface{}

// Trait is one entry of the attributes array
type Trait struct {
	TraitType string      `json:"trait_type"`
	Value     interface{} `json:"value"`
}

// SplitURI splits "s3://bucket/key" into bucket and key. The scheme is optional.
func SplitURI(uri string) (string, string, error) {
	rest := strings.TrimPrefix(uri, "s3://")
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	return bucket, key, nil
}

// Client edits metadata documents kept in an object store
type Client struct {
	store storage.ObjectStore
}

func NewClient(store storage.ObjectStore) (*Client, error) {
	if store == nil {
		return nil, fmt.Errorf("[Metadata] store is nil")
	}
	return &Client{store: store}, nil
}

// Get fetches and decodes the document at uri
func (c *Client) Get(ctx context.Context, uri string) (Metadata, error) {
	bucket, key, err := SplitURI(uri)
	if err != nil {
		return nil, err
	}
	obj, err := c.store.Get(ctx, bucket, key)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(obj.Body))
	dec.UseNumber()
	var md Metadata
	if err := dec.Decode(&md); err != nil {
		return nil, fmt.Errorf("[Metadata] failed to decode %s: %w", uri, err)
	}
	if md == nil {
		md = Metadata{}
	}
	return md, nil
}

// Update replaces the document at uri, creating it when absent
func (c *Client) Update(ctx context.Context, uri string, md Metadata) error {
	bucket, key, err := SplitURI(uri)
	if err != nil {
		return err
	}
	body, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("[Metadata] failed to encode %s: %w", uri, err)
	}
	return c.store.Put(ctx, bucket, key, body, contentTypeJSON)
}

// ChangeName sets the document's name. It reports whether a write happened.
func (c *Client) ChangeName(ctx context.Context, uri, name string) (bool, error) {
	md, err := c.Get(ctx, uri)
	if err != nil {
		return false, err
	}
	if old, ok := md["name"].(string); ok && old == name {
		return false, nil
	}
	md["name"] = name
	if err := c.Update(ctx, uri, md); err != nil {
		return false, err
	}
	return true, nil
}

// AddTrait appends a trait to the attributes array, creating the array when
// absent. With expectUnique an existing trait of the same type is an error.
func (c *Client) AddTrait(ctx context.Context, uri, traitType string, value interface{}, expectUnique bool) error {
	md, err := c.Get(ctx, uri)
	if err != nil {
		return err
	}

	var attributes []interface{}
	switch v := md["attributes"].(type) {
	case nil:
	case []interface{}:
		attributes = v
	default:
		return fmt.Errorf("[Metadata] attributes of %s is not an array", uri)
	}

	if expectUnique {
		for _, a := range attributes {
			if m, ok := a.(map[string]interface{}); ok && m["trait_type"] == traitType {
				return fmt.Errorf("%w: %s", ErrTraitExists, traitType)
			}
		}
	}

	md["attributes"] = append(attributes, Trait{TraitType: traitType, Value: value})
	return c.Update(ctx, uri, md)
}
