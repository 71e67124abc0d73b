// Package shelfsense is a go-to-market intelligence engine for food
// products. It analyzes a product's facts against a weighted business
// objective, learns reusable rules into a persistent playbook, grounds
// research in a citation-backed retrieval index, and merges every
// pipeline's output into one unified, loss-free result.
//
// Key components:
//
//   - scoring: deterministic sub-score arithmetic over LLM-graded criteria,
//     with product-fact modifiers and weighted global scores.
//
//   - playbook: the append-only, section-partitioned store of generalized
//     analysis rules shared by all analyses.
//
//   - ace: the Generator, Reflector, and Curator loop that produces an
//     analysis and evolves the playbook from its own critique.
//
//   - embedding and rag: a rate-limited embedding client feeding a
//     persistent chunk+vector index with cached, citation-backed answers.
//
//   - agents: the specialist workflow (market intelligence, retrieval-
//     grounded research, strategy synthesis) with partial-failure tolerance.
//
//   - merge and engine: the zero-loss output merger and the request
//     coordinator tying both pipelines together.
//
// HTTP serving, UI rendering, and product lookup are external concerns and
// intentionally absent.
package shelfsense
