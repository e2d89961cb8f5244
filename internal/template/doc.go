// Package template supplies the fully resolved resource specifications the
// orchestrator provisions from. A template is read-only once loaded: the
// orchestrator derives specs and names from it but never writes it back.
package template
