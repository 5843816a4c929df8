// Package validation checks user supplied identifiers before they reach a
// modification log or a modification request.
//
// Flow node ids follow the XML NCName subset used by process diagrams:
// ASCII letters, digits, hyphen, underscore and dot, not starting with a
// digit, hyphen or dot. Scope keys are the decimal element instance keys
// assigned by the engine.
package validation
