// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// StoreService is the vector store engine: it keeps the similarity
// index, the document table and the slot mapping mutually consistent
// under one mutation lock, and owns the background persistence worker.
// RetrievalService and DocumentService are thin flows layered on top.
package services
