// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/affinity"
	"github.com/poiesic/affinity/search"
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}

func main() {
	db, err := affinity.NewDatabase("./affinity_db")
	if err != nil {
		panic(err)
	}
	defer db.Close()
	engine, err := db.NewSearchEngine()
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	query := "backend engineer"
	if len(os.Args) > 1 {
		query = strings.Join(os.Args[1:], " ")
	}

	result, err := engine.Search(ctx, &search.Query{
		Text:  query,
		Limit: 5,
	})
	if err != nil {
		panic(err)
	}

	fmt.Printf("Found %d hits\n", result.TotalMatches)
	for i, hit := range result.Matches {
		fmt.Printf("%d: '%s' (%d)[%0.3f]\n", i, hit.EntityName, hit.EntityId, hit.Score)
	}
}
