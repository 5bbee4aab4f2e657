// Package providers holds helpers shared by the banking adapters under its
// subdirectories: input guards, connection-status mapping and the OAuth2
// token grant used by Wise and TrueLayer.
package providers
