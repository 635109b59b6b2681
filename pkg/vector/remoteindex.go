// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"context"
	"fmt"

	qdrant "github.com/qdrant/go-client/qdrant"
)

// RemoteIndex delegates to a Qdrant collection over gRPC instead of
// holding vectors in process memory — the option for deployments that
// want the vector store to outlive and scale independently of the
// CodeGraph process.
type RemoteIndex struct {
	client     *qdrant.Client
	collection string
}

type RemoteIndexConfig struct {
	Host       string
	Port       int
	APIKey     string
	Collection string
	VectorSize uint64
}

func NewRemoteIndex(ctx context.Context, cfg RemoteIndexConfig) (*RemoteIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("vector: connect qdrant: %w", err)
	}

	exists, err := client.CollectionExists(ctx, cfg.Collection)
	if err != nil {
		return nil, fmt.Errorf("vector: check qdrant collection: %w", err)
	}
	if !exists {
		err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: cfg.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     cfg.VectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return nil, fmt.Errorf("vector: create qdrant collection: %w", err)
		}
	}

	return &RemoteIndex{client: client, collection: cfg.Collection}, nil
}

func (r *RemoteIndex) Add(id uint64, v Vector) error {
	ctx := context.Background()
	_, err := r.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: r.collection,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDNum(id),
				Vectors: qdrant.NewVectors(v...),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vector: qdrant upsert: %w", err)
	}
	return nil
}

func (r *RemoteIndex) Remove(id uint64) error {
	ctx := context.Background()
	_, err := r.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: r.collection,
		Points: qdrant.NewPointsSelector(&qdrant.PointsIdsList{
			Ids: []*qdrant.PointId{qdrant.NewIDNum(id)},
		}),
	})
	if err != nil {
		return fmt.Errorf("vector: qdrant delete: %w", err)
	}
	return nil
}

func (r *RemoteIndex) Len() int {
	ctx := context.Background()
	count, err := r.client.Count(ctx, &qdrant.CountPoints{CollectionName: r.collection})
	if err != nil {
		return 0
	}
	return int(count)
}

func (r *RemoteIndex) Search(ctx context.Context, q Vector, k int) ([]ScoredID, error) {
	limit := uint64(k)
	points, err := r.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: r.collection,
		Query:          qdrant.NewQuery(q...),
		Limit:          &limit,
	})
	if err != nil {
		return nil, fmt.Errorf("vector: qdrant query: %w", err)
	}
	out := make([]ScoredID, 0, len(points))
	for _, p := range points {
		out = append(out, ScoredID{LocalID: p.Id.GetNum(), Score: float64(p.Score)})
	}
	return out, nil
}

func (r *RemoteIndex) Close() error {
	return r.client.Close()
}
