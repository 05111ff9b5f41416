// Package hybridex embeds the hybrid search engine in a Go program.
//
// The client runs the same index, search and catalog services as the server,
// in process, against an embedded store or a Redis/Valkey backend.
//
//	client, _ := hybridex.Open(ctx,
//	    hybridex.WithEmbedded(""),
//	    hybridex.WithSchema(hybridex.Schema{
//	        Metric: hybridex.Cosine,
//	        Encoders: []hybridex.Encoder{{
//	            Name: "clip", Dimensions: 512,
//	            Fields: []hybridex.IndexedField{{Name: "title", Modality: "text"}},
//	        }},
//	        Filters: []hybridex.Filterable{{Name: "color", Type: hybridex.FieldTag}},
//	    }),
//	)
//	defer client.Close()
//
//	items, _ := client.Index(ctx, docs)
//	hits, _ := client.Search(ctx, hybridex.SearchRequest{
//	    Query:  hybridex.Query{Fields: []hybridex.QueryField{{Name: "title", Embeddings: vecs}}},
//	    Filter: map[string]any{"color": "red"},
//	})
package hybridex
