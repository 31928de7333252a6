package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"
)

// insightMetrics are requested by Insights
const insightMetrics = "impressions,reach,profile_views,follower_count"

// ImagePublisher publishes an image with a caption
type ImagePublisher interface {
	PostImage(ctx context.Context, imageURL, caption string) PublishResult
}

// InstagramPublisher publishes media to an Instagram business account using
// the container protocol: create a media container, then publish it.
type InstagramPublisher struct {
	graph     *GraphClient
	accountID string
}

// NewInstagramPublisher creates a publisher for the configured business account
func NewInstagramPublisher(settings *Settings, creds Credentials) (*InstagramPublisher, error) {
	if creds.InstagramToken == "" {
		return nil, missing("INSTAGRAM_PAGE_ACCESS_TOKEN")
	}
	if creds.InstagramAccountID == "" {
		return nil, missing("INSTAGRAM_BUSINESS_ACCOUNT_ID")
	}

	graph := NewGraphClient(
		settings.Instagram.BaseURL,
		settings.Instagram.APIVersion,
		creds.InstagramToken,
		AuthBearer,
		settings.Instagram.RequestTimeout(30*time.Second),
		settings.MinGraphInterval(),
	)
	return &InstagramPublisher{graph: graph, accountID: creds.InstagramAccountID}, nil
}

// CreateContainer stages an image and returns the container id
func (p *InstagramPublisher) CreateContainer(ctx context.Context, imageURL, caption string) (string, error) {
	resp := p.graph.Call(ctx, http.MethodPost, "/"+p.accountID+"/media", map[string]string{
		"image_url":  imageURL,
		"caption":    caption,
		"media_type": "IMAGE",
	})
	if resp.Err != nil {
		log.Printf("✗ API Error: %v", resp.Err)
		return "", fmt.Errorf("creating container: %w", resp.Err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("creating container: %w", ErrMissingID)
	}

	log.Printf("✓ Container created: %s", resp.ID)
	return resp.ID, nil
}

// PublishContainer publishes a previously created container and returns the media id
func (p *InstagramPublisher) PublishContainer(ctx context.Context, creationID string) (string, error) {
	resp := p.graph.Call(ctx, http.MethodPost, "/"+p.accountID+"/media_publish", map[string]string{
		"creation_id": creationID,
	})
	if resp.Err != nil {
		log.Printf("✗ API Error: %v", resp.Err)
		return "", fmt.Errorf("publishing container %s: %w", creationID, resp.Err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("publishing container %s: %w", creationID, ErrMissingID)
	}

	log.Printf("✓ Published: %s", resp.ID)
	return resp.ID, nil
}

// PostImage creates a container and publishes it. Publishing is never
// attempted when container creation fails.
func (p *InstagramPublisher) PostImage(ctx context.Context, imageURL, caption string) PublishResult {
	containerID, err := p.CreateContainer(ctx, imageURL, caption)
	if err != nil {
		return Failed(err)
	}

	mediaID, err := p.PublishContainer(ctx, containerID)
	if err != nil {
		return Failed(err)
	}
	return Succeeded(mediaID)
}

// Insights returns the account-level insight metrics as decoded JSON
func (p *InstagramPublisher) Insights(ctx context.Context) (map[string]interface{}, error) {
	resp := p.graph.Call(ctx, http.MethodGet, "/"+p.accountID+"/insights", map[string]string{
		"metric": insightMetrics,
	})
	if resp.Err != nil {
		return nil, fmt.Errorf("fetching insights: %w", resp.Err)
	}
	return resp.Body, nil
}
