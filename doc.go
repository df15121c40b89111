// Package formtree keeps a schema-annotated editor tree in sync with a
// reactive data document.
//
// The root package holds the shared vocabulary:
// - Definition and its Shape variants, the Registry of named types, TypeScheme and display groups
// - Node, the editor tree element, with its Children variants and Path
// - a stable error model via Issue/Issues (JSON Pointer, code, message)
// - schema helpers and a JSON Schema projection
//
// Layout:
// - cells/ is the reactive store (Sheet) every other package builds on.
// - mapping/ reconciles collections, reusing derived cells by identity.
// - resolve/, validity/ and defaults/ resolve types, validate values and generate defaults.
// - tree/ builds and maintains the editor tree; editor/ is the editing API on top of it.
// - source/ loads JSON documents and YAML schemas and watches schema files.
//
// Typical usage:
//
//	s := cells.NewSheet()
//	sc, _ := source.LoadSchema("schema.yaml")
//	data, _ := source.DecodeBytes(s, raw)
//	ed := editor.New(ctx, s, data, sc.Bind(s))
//	node, _ := ed.Follow(ctx, formtree.Path{"items"})
//	_ = ed.AddElement(ctx, node)
//	ok, _ := ed.IsValid(ctx)
package formtree
