package services

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/desertthunder/gmsync/internal/shared"
)

// NewRemoteClient builds a [ProxyClient] from the [remote] config section.
//
// When a refresh token is configured the underlying [http.Client] comes from [oauth2.Config.Client],
// which attaches a bearer token and refreshes it when it expires. Without one, requests are sent unauthenticated.
func NewRemoteClient(ctx context.Context, conf shared.RemoteConfig) *ProxyClient {
	var httpClient *http.Client
	if conf.RefreshToken != "" {
		oauthConf := &oauth2.Config{
			ClientID:     conf.ClientID,
			ClientSecret: conf.ClientSecret,
			Scopes:       conf.Scopes,
			Endpoint:     oauth2.Endpoint{TokenURL: conf.TokenURL},
		}
		httpClient = oauthConf.Client(ctx, &oauth2.Token{RefreshToken: conf.RefreshToken})
	} else {
		httpClient = &http.Client{}
	}
	httpClient.Timeout = conf.Timeout

	client := NewProxyClient(conf.BaseURL, httpClient)
	client.SetRateLimit(conf.RateLimit, conf.Burst)
	return client
}
