package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"
)

// ErrMissingID is returned when the API answers without an id field
var ErrMissingID = errors.New("response has no id")

// TextPublisher publishes a plain text post
type TextPublisher interface {
	PostText(ctx context.Context, message string) PublishResult
}

// FacebookPublisher posts messages to a Facebook Page feed
type FacebookPublisher struct {
	graph  *GraphClient
	pageID string
}

// NewFacebookPublisher creates a publisher for the configured page
func NewFacebookPublisher(settings *Settings, creds Credentials) (*FacebookPublisher, error) {
	if creds.FacebookPageID == "" {
		return nil, missing("FACEBOOK_PAGE_ID")
	}
	if creds.FacebookPageToken == "" {
		return nil, missing("FACEBOOK_PAGE_TOKEN")
	}

	graph := NewGraphClient(
		settings.Facebook.BaseURL,
		settings.Facebook.APIVersion,
		creds.FacebookPageToken,
		AuthFormToken,
		settings.Facebook.RequestTimeout(10*time.Second),
		settings.MinGraphInterval(),
	)
	return &FacebookPublisher{graph: graph, pageID: creds.FacebookPageID}, nil
}

// PostText publishes message to the page feed. Only an HTTP 200 carrying an
// id counts as success.
func (p *FacebookPublisher) PostText(ctx context.Context, message string) PublishResult {
	resp := p.graph.Call(ctx, http.MethodPost, "/"+p.pageID+"/feed", map[string]string{
		"message": message,
	})
	if resp.Err != nil {
		log.Printf("✗ Facebook API error: %v", resp.Err)
		return Failed(resp.Err)
	}
	if resp.StatusCode != http.StatusOK {
		err := &HTTPError{StatusCode: resp.StatusCode, URL: "/" + p.pageID + "/feed"}
		log.Printf("✗ Facebook API error: %v", err)
		return Failed(err)
	}
	if resp.ID == "" {
		err := fmt.Errorf("posting to page %s: %w", p.pageID, ErrMissingID)
		log.Printf("✗ Facebook API error: %v", err)
		return Failed(err)
	}

	log.Printf("✓ Posted to Facebook: %s", resp.ID)
	return Succeeded(resp.ID)
}
