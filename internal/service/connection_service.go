package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "github.com/getpublora/publora/configs"
	"github.com/getpublora/publora/internal/models"
	"github.com/getpublora/publora/internal/repository"
	"github.com/getpublora/publora/internal/transfer"
	"github.com/getpublora/publora/pkg/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	facebookAuthURL  = "https://www.facebook.com/v21.0/dialog/oauth"
	instagramAuthURL = "https://www.instagram.com/oauth/authorize"
	tiktokAuthURL    = "https://www.tiktok.com/v2/auth/authorize"
	googleAuthURL    = "https://accounts.google.com/o/oauth2/v2/auth"
	tiktokTokenURL   = "https://open.tiktokapis.com/v2/oauth/token/"
)

// ConnectionService owns the connection registry: linking accounts, listing
// them, deactivating them, and keeping their tokens fresh. The publishing
// core only ever reads connections.
type ConnectionService interface {
	GetAuthURL(ctx context.Context, platformName, state string) string
	HandleCallback(ctx context.Context, platformName, code string, orgID int64) error
	List(ctx context.Context, orgID int64) ([]*models.Connection, error)
	Deactivate(ctx context.Context, orgID, connectionID int64) error
	RefreshToken(ctx context.Context, conn *models.Connection) error
}

type connectionService struct {
	cfg config.Config
	cr  repository.ConnectionRepository
}

func NewConnectionService(cfg config.Config, cr repository.ConnectionRepository) ConnectionService {
	return &connectionService{
		cfg: cfg,
		cr:  cr,
	}
}

func (s *connectionService) GetAuthURL(ctx context.Context, platformName, state string) string {
	switch platformName {
	case models.PlatformFacebook:
		params := url.Values{}
		params.Add("client_id", s.cfg.FacebookClientID)
		params.Add("redirect_uri", s.cfg.FacebookRedirectURI)
		params.Add("scope", "pages_show_list,pages_manage_posts,pages_read_engagement")
		params.Add("response_type", "code")
		params.Add("state", state)
		return fmt.Sprintf("%s?%s", facebookAuthURL, params.Encode())

	case models.PlatformInstagram:
		params := url.Values{}
		params.Add("client_id", s.cfg.InstagramClientID)
		params.Add("scope", "instagram_business_basic,instagram_business_content_publish")
		params.Add("response_type", "code")
		params.Add("redirect_uri", s.cfg.InstagramRedirectURI)
		params.Add("state", state)
		return fmt.Sprintf("%s?%s", instagramAuthURL, params.Encode())

	case models.PlatformTiktok:
		params := url.Values{}
		params.Add("client_key", s.cfg.TiktokClientKey)
		params.Add("scope", "user.info.basic,user.info.profile,video.publish,video.upload")
		params.Add("response_type", "code")
		params.Add("redirect_uri", s.cfg.TiktokRedirectURI)
		params.Add("state", state)
		return fmt.Sprintf("%s?%s", tiktokAuthURL, params.Encode())

	case models.PlatformYoutube:
		params := url.Values{}
		params.Add("client_id", s.cfg.GoogleClientID)
		params.Add("redirect_uri", s.cfg.GoogleRedirectURI)
		params.Add("response_type", "code")
		params.Add("scope", "https://www.googleapis.com/auth/userinfo.profile https://www.googleapis.com/auth/userinfo.email https://www.googleapis.com/auth/youtube.upload")
		params.Add("state", state)
		params.Add("access_type", "offline")
		return fmt.Sprintf("%s?%s", googleAuthURL, params.Encode())

	default:
		return ""
	}
}

func (s *connectionService) HandleCallback(ctx context.Context, platformName, code string, orgID int64) error {
	if code == "" {
		err := errors.New("code is empty")
		slog.Info(err.Error())
		return err
	}
	if orgID == 0 {
		err := errors.New("organization not found")
		slog.Info(err.Error())
		return err
	}

	switch platformName {
	case models.PlatformFacebook:
		return s.facebookCallback(ctx, code, orgID)
	case models.PlatformInstagram:
		return s.instagramCallback(ctx, code, orgID)
	case models.PlatformTiktok:
		return s.tiktokCallback(ctx, code, orgID)
	case models.PlatformYoutube:
		return s.youtubeCallback(ctx, code, orgID)
	default:
		return fmt.Errorf("unknown platform %s", platformName)
	}
}

// facebookCallback links the authorizing user's own profile plus every page
// they manage. The profile connection is stored with kind profile and is
// screened out by the eligibility filter; pages carry their own page tokens
// and are the only facebook connections dispatch will ever target.
func (s *connectionService) facebookCallback(ctx context.Context, code string, orgID int64) error {
	userToken, expiresAt, err := s.exchangeFacebookCode(ctx, code)
	if err != nil {
		return err
	}

	var me struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Picture struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	}
	if err := s.getJSON(ctx, fmt.Sprintf("https://graph.facebook.com/v21.0/me?fields=id,name,picture&access_token=%s", userToken), &me); err != nil {
		return err
	}

	encryptedUserToken, err := utils.Encrypt([]byte(userToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	_, err = s.cr.Create(ctx, nil, &models.Connection{
		OrgID:          orgID,
		Platform:       models.PlatformFacebook,
		AccountID:      me.ID,
		AccountName:    me.Name,
		AccountKind:    models.AccountKindProfile,
		ProfilePicture: me.Picture.Data.URL,
		IsActive:       true,
		AccessToken:    encryptedUserToken,
		RefreshToken:   encryptedUserToken,
		TokenExpiresAt: expiresAt,
	})
	if err != nil {
		return err
	}

	var pages transfer.FacebookPagesResponse
	if err := s.getJSON(ctx, fmt.Sprintf("https://graph.facebook.com/v21.0/me/accounts?fields=id,name,access_token,picture&access_token=%s", userToken), &pages); err != nil {
		return err
	}

	for _, page := range pages.Data {
		encryptedPageToken, err := utils.Encrypt([]byte(page.AccessToken), []byte(s.cfg.SecretKey))
		if err != nil {
			return err
		}

		_, err = s.cr.Create(ctx, nil, &models.Connection{
			OrgID:          orgID,
			Platform:       models.PlatformFacebook,
			AccountID:      page.ID,
			AccountName:    page.Name,
			AccountKind:    models.AccountKindPage,
			ProfilePicture: page.Picture.Data.URL,
			IsActive:       true,
			AccessToken:    encryptedPageToken,
			RefreshToken:   encryptedPageToken,
			TokenExpiresAt: expiresAt,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *connectionService) exchangeFacebookCode(ctx context.Context, code string) (string, time.Time, error) {
	params := url.Values{}
	params.Add("client_id", s.cfg.FacebookClientID)
	params.Add("client_secret", s.cfg.FacebookClientSecret)
	params.Add("redirect_uri", s.cfg.FacebookRedirectURI)
	params.Add("code", code)

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := s.getJSON(ctx, fmt.Sprintf("https://graph.facebook.com/v21.0/oauth/access_token?%s", params.Encode()), &result); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to exchange facebook code: %w", err)
	}
	if result.AccessToken == "" {
		return "", time.Time{}, errors.New("no access token returned from Facebook")
	}

	return result.AccessToken, GetExpiresAt(result.ExpiresIn), nil
}

func (s *connectionService) instagramCallback(ctx context.Context, code string, orgID int64) error {
	token, err := s.exchangeInstagramCode(ctx, code)
	if err != nil {
		return err
	}

	var userInfo transfer.InstagramUserInfo
	if err := s.getJSON(ctx, fmt.Sprintf("https://graph.instagram.com/me?fields=id,username,name,account_type,profile_picture_url&access_token=%s", token.AccessToken), &userInfo); err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	_, err = s.cr.Create(ctx, nil, &models.Connection{
		OrgID:          orgID,
		Platform:       models.PlatformInstagram,
		AccountID:      userInfo.UserID,
		AccountName:    userInfo.Username,
		AccountKind:    models.AccountKindProfile,
		ProfilePicture: userInfo.ProfilePicture,
		IsActive:       true,
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedAccessToken,
		TokenExpiresAt: token.ExpiresAt,
	})
	return err
}

func (s *connectionService) exchangeInstagramCode(ctx context.Context, code string) (*transfer.InstagramToken, error) {
	data := url.Values{}
	data.Set("client_id", s.cfg.InstagramClientID)
	data.Set("client_secret", s.cfg.InstagramClientSecret)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", s.cfg.InstagramRedirectURI)
	data.Set("code", code)

	resp, err := http.Post(
		"https://api.instagram.com/oauth/access_token",
		"application/x-www-form-urlencoded",
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to get short-lived token: %w", err)
	}
	defer resp.Body.Close()

	var shortLived struct {
		AccessToken string `json:"access_token"`
		UserID      int    `json:"user_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&shortLived); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	var longLived struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	exchangeURL := fmt.Sprintf(
		"https://graph.instagram.com/access_token?grant_type=ig_exchange_token&client_secret=%s&access_token=%s",
		s.cfg.InstagramClientSecret,
		shortLived.AccessToken,
	)
	if err := s.getJSON(ctx, exchangeURL, &longLived); err != nil {
		return nil, fmt.Errorf("failed to get long-lived token: %w", err)
	}

	return &transfer.InstagramToken{
		UserID:      shortLived.UserID,
		AccessToken: longLived.AccessToken,
		ExpiresAt:   time.Now().Add(time.Second * time.Duration(longLived.ExpiresIn)),
	}, nil
}

func (s *connectionService) tiktokCallback(ctx context.Context, code string, orgID int64) error {
	tokenResponse, err := s.exchangeTiktokCode(code)
	if err != nil {
		return err
	}

	userInfo, err := s.tiktokUserInfo(ctx, tokenResponse.AccessToken)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(tokenResponse.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}
	encryptedRefreshToken, err := utils.Encrypt([]byte(tokenResponse.RefreshToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	_, err = s.cr.Create(ctx, nil, &models.Connection{
		OrgID:          orgID,
		Platform:       models.PlatformTiktok,
		AccountID:      userInfo.Data.User.OpenID,
		AccountName:    userInfo.Data.User.DisplayName,
		AccountKind:    models.AccountKindProfile,
		ProfilePicture: userInfo.Data.User.AvatarURL,
		IsActive:       true,
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedRefreshToken,
		TokenExpiresAt: GetExpiresAt(tokenResponse.ExpiresIn),
	})
	return err
}

func (s *connectionService) exchangeTiktokCode(code string) (*transfer.TiktokTokenResponse, error) {
	data := url.Values{}
	data.Add("client_key", s.cfg.TiktokClientKey)
	data.Add("client_secret", s.cfg.TiktokClientSecret)
	data.Add("code", code)
	data.Add("grant_type", "authorization_code")
	data.Add("redirect_uri", s.cfg.TiktokRedirectURI)

	resp, err := http.Post(
		tiktokTokenURL,
		"application/x-www-form-urlencoded",
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	var tokenResponse transfer.TiktokTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	if tokenResponse.AccessToken == "" {
		return nil, errors.New("no access token returned from TikTok")
	}

	return &tokenResponse, nil
}

func (s *connectionService) tiktokUserInfo(ctx context.Context, accessToken string) (*transfer.TiktokUserInfoResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", "https://open.tiktokapis.com/v2/user/info/?fields=open_id,avatar_url,display_name,username", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	var userInfo transfer.TiktokUserInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return &userInfo, nil
}

func (s *connectionService) youtubeCallback(ctx context.Context, code string, orgID int64) error {
	oauth2Config := &oauth2.Config{
		ClientID:     s.cfg.GoogleClientID,
		ClientSecret: s.cfg.GoogleClientSecret,
		RedirectURL:  s.cfg.GoogleRedirectURI,
		Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile", "https://www.googleapis.com/auth/youtube.upload"},
		Endpoint:     google.Endpoint,
	}

	if oauth2Config.ClientID == "" || oauth2Config.ClientSecret == "" || oauth2Config.RedirectURL == "" {
		err := errors.New("OAuth2 configuration is incomplete")
		slog.Info(err.Error())
		return err
	}

	token, err := oauth2Config.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if token.RefreshToken == "" {
		err := errors.New("refresh token is empty")
		slog.Info(err.Error())
		return err
	}

	client := oauth2Config.Client(ctx, token)
	userInfo, err := GetGoogleUserInfo(client)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}
	encryptedRefreshToken, err := utils.Encrypt([]byte(token.RefreshToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	_, err = s.cr.Create(ctx, nil, &models.Connection{
		OrgID:          orgID,
		Platform:       models.PlatformYoutube,
		AccountID:      userInfo.ID,
		AccountName:    userInfo.Name,
		AccountKind:    models.AccountKindProfile,
		ProfilePicture: userInfo.Picture,
		IsActive:       true,
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedRefreshToken,
		TokenExpiresAt: token.Expiry,
	})
	return err
}

func (s *connectionService) List(ctx context.Context, orgID int64) ([]*models.Connection, error) {
	if orgID == 0 {
		err := errors.New("orgID is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	connections, err := s.cr.ListInfoByOrgID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("error getting connections")
	}

	return connections, nil
}

func (s *connectionService) Deactivate(ctx context.Context, orgID, connectionID int64) error {
	if connectionID == 0 {
		err := errors.New("connectionID is not valid")
		slog.Info(err.Error())
		return err
	}

	isValid, err := s.cr.CheckByOrgID(ctx, connectionID, orgID)
	if err != nil {
		return err
	}
	if !isValid {
		slog.Info("connection doesn't exist", "connection_id", connectionID)
		return ErrNotFound
	}

	return s.cr.Deactivate(ctx, connectionID)
}

// RefreshToken refreshes one connection's credentials in place. Facebook
// page tokens do not expire on their own and are left alone.
func (s *connectionService) RefreshToken(ctx context.Context, conn *models.Connection) error {
	switch conn.Platform {
	case models.PlatformInstagram:
		return s.refreshInstagramToken(ctx, conn)
	case models.PlatformTiktok:
		return s.refreshTiktokToken(ctx, conn)
	case models.PlatformYoutube:
		return s.refreshYoutubeToken(ctx, conn)
	default:
		return nil
	}
}

func (s *connectionService) refreshInstagramToken(ctx context.Context, conn *models.Connection) error {
	decryptedToken, err := utils.Decrypt(conn.RefreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	refreshURL := fmt.Sprintf(
		"https://graph.instagram.com/refresh_access_token?grant_type=ig_refresh_token&access_token=%s",
		decryptedToken,
	)
	if err := s.getJSON(ctx, refreshURL, &result); err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(result.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	return s.cr.SetToken(ctx, conn.OrgID, conn.AccessToken, &models.Connection{
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedAccessToken,
		TokenExpiresAt: time.Now().Add(time.Second * time.Duration(result.ExpiresIn)),
	})
}

func (s *connectionService) refreshTiktokToken(ctx context.Context, conn *models.Connection) error {
	decryptedRefreshToken, err := utils.Decrypt(conn.RefreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	data := url.Values{}
	data.Add("client_key", s.cfg.TiktokClientKey)
	data.Add("client_secret", s.cfg.TiktokClientSecret)
	data.Add("grant_type", "refresh_token")
	data.Add("refresh_token", decryptedRefreshToken)

	resp, err := http.Post(
		tiktokTokenURL,
		"application/x-www-form-urlencoded",
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer resp.Body.Close()

	var tokenResponse transfer.TiktokTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		slog.Info(err.Error())
		return err
	}
	if tokenResponse.AccessToken == "" {
		return errors.New("no access token returned from TikTok refresh")
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(tokenResponse.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}
	encryptedRefreshToken, err := utils.Encrypt([]byte(tokenResponse.RefreshToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	return s.cr.SetToken(ctx, conn.OrgID, conn.AccessToken, &models.Connection{
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedRefreshToken,
		TokenExpiresAt: GetExpiresAt(tokenResponse.ExpiresIn),
	})
}

func (s *connectionService) refreshYoutubeToken(ctx context.Context, conn *models.Connection) error {
	decryptedRefreshToken, err := utils.Decrypt(conn.RefreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	oauth2Config := &oauth2.Config{
		ClientID:     s.cfg.GoogleClientID,
		ClientSecret: s.cfg.GoogleClientSecret,
		Endpoint:     google.Endpoint,
	}

	tokenSource := oauth2Config.TokenSource(ctx, &oauth2.Token{RefreshToken: decryptedRefreshToken})
	token, err := tokenSource.Token()
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	return s.cr.SetToken(ctx, conn.OrgID, conn.AccessToken, &models.Connection{
		AccessToken:    encryptedAccessToken,
		TokenExpiresAt: token.Expiry,
	})
}

func (s *connectionService) getJSON(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
