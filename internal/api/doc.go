// Package api provides the Betfair Exchange REST client used to discover markets and load
// their metadata.
//
// Endpoints (relative to the base URL, default https://api.betfair.com/exchange):
//   - GET  /betting/rest/v1/en/navigation/menu.json   navigation tree
//   - POST /betting/rest/v1.0/listMarketCatalogue/    market catalogue
//   - POST /account/rest/v1.0/getAccountDetails/      account details
//
// Every request carries the X-Application (app key) and X-Authentication (session token)
// headers.
package api
