package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/tahfeezapp/tahfeez/core"
	"github.com/tahfeezapp/tahfeez/core/auth"
	"github.com/tahfeezapp/tahfeez/core/session"
	"github.com/tahfeezapp/tahfeez/core/user"
	emailsvc "github.com/tahfeezapp/tahfeez/services/email"
	identitysvc "github.com/tahfeezapp/tahfeez/services/identity"
	logsvc "github.com/tahfeezapp/tahfeez/services/logger"
	dummydb "github.com/tahfeezapp/tahfeez/storage/database/dummy"
	"github.com/tahfeezapp/tahfeez/storage/keyvalue"
)

var errMissingToken = httpErr{Error: auth.MsgSignInRequired}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func testConf(requireConfirm bool) *core.Config {
	return &core.Config{
		TestMode:                 true,
		AppName:                  "Tahfeez",
		SecretKey:                []byte("secret"),
		DefaultFromEmail:         "noreply@localhost",
		FrontendBaseURL:          "http://localhost:3000",
		RequireEmailConfirm:      requireConfirm,
		SessionExpirationDelta:   10 * time.Minute,
		EmailConfirmTimeoutDelta: 3 * 24 * time.Hour,
	}
}

func setup(t *testing.T, conf *core.Config) (*Server, ServerDeps) {
	t.Helper()

	// set up DB & repos
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	users := dummydb.NewUserRepository(db)
	accounts := dummydb.NewAccountRepository(db)
	sessions := dummydb.NewSessionRepository(db)

	// set up services
	logger := logsvc.NewStdLogger(log.New(io.Discard, "", 0))
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	provider := identitysvc.NewProvider(conf, accounts, mailSvc, logger)

	// set up stores
	authStore := auth.NewStore(provider, users, keyvalue.NewInMemPendingRoleStore(), logger)
	authStore.Initialize(context.Background())
	sessionStore := session.NewStore(sessions, provider, logger)

	validate := validator.New()
	translator := newTestTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	deps := ServerDeps{
		Conf:         conf,
		Logger:       logger,
		Provider:     provider,
		AuthStore:    authStore,
		SessionStore: sessionStore,
		Users:        users,
		Validate:     validate,
		Translator:   translator,
	}
	return NewServer(deps), deps
}

func newTestTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// createUser provisions an account plus its role record, bypassing the
// sign-up flow.
func createUser(t *testing.T, deps ServerDeps, email, pwd, role string) (auth.Account, user.User) {
	t.Helper()
	ctx := context.Background()

	acct := auth.Account{Email: email, Confirmed: true, CreatedAt: time.Now().UTC()}
	if err := acct.SetPassword(pwd); err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	acct, err := deps.Provider.Accounts().CreateAccount(ctx, acct)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}

	usr, err := deps.Users.CreateUser(ctx, user.User{
		ID:        acct.ID,
		Email:     acct.Email,
		Role:      role,
		CreatedAt: acct.CreatedAt,
	})
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return acct, usr
}

func getToken(t *testing.T, deps ServerDeps, acct auth.Account) string {
	t.Helper()
	now := time.Now()
	token, err := deps.Provider.GenerateToken(&identitysvc.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    deps.Conf.AppName,
			Subject:   acct.ID,
			ExpiresAt: now.Add(deps.Conf.SessionExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Email: acct.Email,
	})
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func unmarshalBody(rec *httptest.ResponseRecorder, v interface{}) error {
	return json.Unmarshal(rec.Body.Bytes(), v)
}

func identityEncodeUID(acct auth.Account) string {
	return identitysvc.EncodeUID(acct)
}

func identityMakeToken(acct auth.Account, deps ServerDeps) (string, error) {
	return identitysvc.MakeToken(acct, deps.Conf)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
