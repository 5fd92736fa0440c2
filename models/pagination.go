package models

import (
	"encoding/base64"
	"strconv"

	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type PageInfo struct {
	StartCursor string `json:"startCursor"`
	EndCursor   string `json:"endCursor"`
	HasNextPage *bool  `json:"hasNextPage,omitempty"`
}

type Edge[N any] struct {
	Node   *N     `json:"node"`
	Cursor string `json:"cursor"`
}

type Connection[N any] struct {
	Edges    []Edge[N] `json:"edges"`
	PageInfo *PageInfo `json:"pageInfo"`
}

func EncodeCursor(id int) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(id)))
}

func DecodeCursor(cursor *string) (int, error) {
	if cursor == nil || *cursor == "" {
		return 0, nil
	}
	b, err := base64.StdEncoding.DecodeString(*cursor)
	if err != nil {
		return 0, utils.NewValidationError("invalid cursor")
	}
	id, err := strconv.Atoi(string(b))
	if err != nil || id <= 0 {
		return 0, utils.NewValidationError("invalid cursor")
	}
	return id, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

// FetchPageById pages newest first on the primary key.
func FetchPageById[T Identifier](dbCtx *gorm.DB, limit int, after *string) (*Connection[T], error) {
	limit = normalizeLimit(limit)
	afterId, err := DecodeCursor(after)
	if err != nil {
		return nil, err
	}
	if afterId > 0 {
		dbCtx = dbCtx.Where("id < ?", afterId)
	}

	nodes := make([]*T, 0, limit+1)
	if err := dbCtx.Order("id DESC").Limit(limit + 1).Find(&nodes).Error; err != nil {
		return nil, err
	}

	hasNextPage := len(nodes) > limit
	if hasNextPage {
		nodes = nodes[:limit]
	}
	edges := make([]Edge[T], 0, len(nodes))
	for _, node := range nodes {
		edges = append(edges, Edge[T]{Node: node, Cursor: EncodeCursor((*node).GetId())})
	}

	pageInfo := PageInfo{HasNextPage: utils.NewFalse()}
	if len(edges) > 0 {
		pageInfo = PageInfo{
			StartCursor: edges[0].Cursor,
			EndCursor:   edges[len(edges)-1].Cursor,
			HasNextPage: &hasNextPage,
		}
	}
	return &Connection[T]{Edges: edges, PageInfo: &pageInfo}, nil
}
