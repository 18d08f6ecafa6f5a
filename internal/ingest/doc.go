/*
Ingest tails an external feed into the symbol state store.

# Module
  - record: decodes one JSON update record into a market.Patch
  - ingestor: single goroutine reading a Source and merging every record
  - sources: file tail, websocket, kafka

# Source
  - line-delimited JSON over a file, websocket messages, kafka messages

# Produce
  - merged market.SymbolState entries in the store

Malformed records are dropped with a warning. A failing source stops the
ingestor; restarting it is up to the owner of the Handle.
*/
package ingest
