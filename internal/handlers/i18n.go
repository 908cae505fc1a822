package handlers

import "github.com/base43/calicanto/pkg/i18n"

// __ localizes client-facing strings.
var __ = i18n.Translate
