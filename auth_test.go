package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/smartystreets/goconvey/convey"
)

func TestUser(t *testing.T) {
	Convey("Methods work as expected", t, func() {
		user := new(User)
		Convey("Setting and verify password works correctly with hashes", func() {
			So(user.SetPassword([]byte("hello123")), ShouldBeNil)
			So(user.Password, ShouldStartWith, "$")

			So(user.VerifyPassword([]byte("hello123")), ShouldBeNil)
			So(user.VerifyPassword([]byte("hello12")), ShouldNotBeNil)
		})

		Convey("Invalid hash returns the correct error code", func() {
			user.Password = "I DON'T WORK"
			So(user.VerifyPassword([]byte("hello123")).Error(), ShouldContainSubstring, "hashedSecret too short")
		})
	})
}

func TestJWTGeneration(t *testing.T) {
	Convey("test basic claim creation", t, func() {
		env := newTestEnv(t, withAuth)
		ts, err := env.newJWT("hello test")
		So(err, ShouldBeNil)
		So(ts, ShouldNotBeEmpty)

		claims := &jwt.RegisteredClaims{}
		_, err = jwt.ParseWithClaims(ts, claims, func(*jwt.Token) (interface{}, error) { return []byte(testSecret), nil })
		So(err, ShouldBeNil)
		So(claims.Subject, ShouldEqual, "hello test")
		So(claims.Issuer, ShouldEqual, "rcremote")
	})
}

func postLogin(env *testEnv, email, password string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(&LoginPayload{Email: email, Password: password})
	req := httptest.NewRequest("POST", "/api/login", bytes.NewBuffer(body))
	req.Header.Add("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	http.HandlerFunc(env.Login).ServeHTTP(rr, req)
	return rr
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, withAuth)
	_, err := env.CreateUser("login@test.case", "testing123", true)
	if err != nil {
		t.Fatal(err)
	}

	Convey("Valid request works as expected", t, func() {
		rr := postLogin(env, "login@test.case", "testing123")

		So(rr.Code, ShouldEqual, http.StatusOK)
		var payload JWTPayload
		So(json.Unmarshal(rr.Body.Bytes(), &payload), ShouldBeNil)
		So(payload.SignedToken, ShouldNotBeEmpty)
	})

	Convey("Invalid credentials return error", t, func() {
		Convey("Incorrect username provides 404", func() {
			rr := postLogin(env, "login-no@test.case", "testing123")
			So(rr.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Incorrect password provides 403", func() {
			rr := postLogin(env, "login@test.case", "testing12")
			So(rr.Code, ShouldEqual, http.StatusForbidden)
		})

		Convey("Missing email provides 400", func() {
			rr := postLogin(env, "", "testing123")
			So(rr.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func authedGet(env *testEnv, path, token string) *http.Response {
	req, _ := http.NewRequest("GET", env.server.URL+path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		panic(err)
	}
	resp.Body.Close()
	return resp
}

func TestValidateJWT(t *testing.T) {
	Convey("with auth enabled", t, func() {
		env := newTestEnv(t, withAuth)
		token, err := env.newJWT("ops@test.case")
		So(err, ShouldBeNil)

		Convey("a missing token is refused", func() {
			So(authedGet(env, "/api/status", "").StatusCode, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("a valid token is accepted", func() {
			So(authedGet(env, "/api/status", token).StatusCode, ShouldEqual, http.StatusOK)
			So(authedGet(env, "/api/refresh_token", token).StatusCode, ShouldEqual, http.StatusOK)
		})

		Convey("the token may ride in the query string", func() {
			So(authedGet(env, "/api/telemetry?jwt="+token, "").StatusCode, ShouldEqual, http.StatusOK)
		})

		Convey("a token signed with another secret is refused", func() {
			forged := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{Issuer: "rcremote", Subject: "x"})
			signed, _ := forged.SignedString([]byte("not the secret"))
			So(authedGet(env, "/api/status", signed).StatusCode, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("an expired token is refused", func() {
			env.clock.Advance(2 * time.Hour)
			So(authedGet(env, "/api/status", token).StatusCode, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("the websocket requires a token", func() {
			_, resp, err := dialEnv(env, "")
			So(err, ShouldNotBeNil)
			So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)

			ws, _, err := dialEnv(env, "?jwt="+token)
			So(err, ShouldBeNil)
			ws.Close()
		})
	})

	Convey("with auth disabled", t, func() {
		env := newTestEnv(t, nil)

		Convey("the API is open", func() {
			So(authedGet(env, "/api/status", "").StatusCode, ShouldEqual, http.StatusOK)
		})

		Convey("login is not served", func() {
			resp, err := http.Post(env.server.URL+"/api/login", "application/json", bytes.NewBufferString("{}"))
			So(err, ShouldBeNil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldBeIn, http.StatusNotFound, http.StatusMethodNotAllowed)
		})
	})
}
