// Package translate proxies a LibreTranslate-compatible service so the
// client and the forum can localize user-visible text. Translation is best
// effort: any upstream failure falls back to the original text, so a broken
// translator never breaks the product surface around it.
package translate
