// Copyright 2018 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/abahm00/shopwise-clone/src/frontend/cartstore"
	"github.com/abahm00/shopwise-clone/src/frontend/catalog"
	"github.com/abahm00/shopwise-clone/src/frontend/identity"
	"github.com/abahm00/shopwise-clone/src/frontend/model"
	"github.com/abahm00/shopwise-clone/src/frontend/money"
	"github.com/abahm00/shopwise-clone/src/frontend/validator"
)

const (
	msgGenericError     = "An error occurred. Please try again."
	msgProductFetch     = "Failed to fetch product details."
	msgCategoriesFetch  = "Failed to load categories. Please try again later."
	msgNoProducts       = "No products found."
	msgAddedToCart      = "Product added to cart!"
	msgInvalidLogin     = "Invalid email or password."
	msgEmailTaken       = "Email already exists."
	msgEmailUnknown     = "User with this email not found."
	msgPasswordUpdated  = "Password updated successfully."
	msgSignupSuccessful = "Signup successful! Please log in."
)

var (
	templates = template.Must(template.New("").
			Funcs(template.FuncMap{
			"renderMoney": money.Render,
			"renderPrice": money.RenderFloat,
		}).ParseGlob("templates/*.html"))

	sizeOptions  = []string{"S", "M", "L", "XL"}
	ringSizes    = []string{"19", "20", "21", "22", "23", "24"}
	colorOptions = []string{"red", "blue", "green", "black"}
)

// homeHandler serves every product listing: all products, a category, or a search.
func (fe *frontendServer) homeHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	if requestCounter != nil {
		requestCounter.Add(r.Context(), 1)
	}
	query := mux.Vars(r)["query"]
	category := mux.Vars(r)["category"]
	log.WithField("query", query).WithField("category", category).Info("home")

	var (
		products []model.Product
		listErr  error
		cart     *cartstore.Store
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		products, listErr = fe.catalog.ListProducts(ctx)
		return nil
	})
	g.Go(func() error {
		s, err := fe.cartStore(r)
		cart = s
		return errors.Wrap(err, "could not retrieve cart")
	})
	if err := g.Wait(); err != nil {
		renderHTTPError(log, r, w, err, http.StatusInternalServerError)
		return
	}
	if listErr != nil {
		// the listing falls back to its empty text
		log.WithField("error", listErr).Warn("could not retrieve products")
	}

	if err := templates.ExecuteTemplate(w, "home", injectCommonTemplateData(r, map[string]interface{}{
		"products":    catalog.Filter(products, query, category),
		"query":       query,
		"category":    category,
		"empty_text":  msgNoProducts,
		"cart_size":   cartSize(cart.Lines()),
		"flash":       popFlash(w, r),
		"show_search": true,
	})); err != nil {
		log.Error(err)
	}
}

// searchHandler turns the navbar search form into a /search/{query} listing.
func (fe *frontendServer) searchHandler(w http.ResponseWriter, r *http.Request) {
	if q := strings.TrimSpace(r.FormValue("q")); q != "" {
		http.Redirect(w, r, baseUrl+"/search/"+url.PathEscape(q), http.StatusFound)
		return
	}
	fe.homeHandler(w, r)
}

func (fe *frontendServer) categoriesHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	log.Debug("serving categories")

	var errMsg string
	categories, err := fe.catalog.ListCategories(r.Context())
	if err != nil {
		log.WithField("error", err).Warn("failed to retrieve categories")
		errMsg = msgCategoriesFetch
	}
	cart, err := fe.cartStore(r)
	if err != nil {
		renderHTTPError(log, r, w, errors.Wrap(err, "could not retrieve cart"), http.StatusInternalServerError)
		return
	}

	if err := templates.ExecuteTemplate(w, "categories", injectCommonTemplateData(r, map[string]interface{}{
		"categories": categories,
		"error":      errMsg,
		"cart_size":  cartSize(cart.Lines()),
	})); err != nil {
		log.Error(err)
	}
}

func (fe *frontendServer) productHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	id := mux.Vars(r)["id"]
	if id == "" {
		renderHTTPError(log, r, w, errors.New("product id not specified"), http.StatusBadRequest)
		return
	}
	log.WithField("id", id).Debug("serving product page")

	var (
		p    *model.Product
		cart *cartstore.Store
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		p, err = fe.catalog.GetProduct(ctx, model.ID(id))
		return err
	})
	g.Go(func() error {
		s, err := fe.cartStore(r)
		cart = s
		return errors.Wrap(err, "could not retrieve cart")
	})
	err := g.Wait()
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		fe.notFoundHandler(w, r)
		return
	case err != nil:
		log.WithField("error", err).Warn("failed to retrieve product")
		w.WriteHeader(http.StatusBadGateway)
		if err := templates.ExecuteTemplate(w, "product", injectCommonTemplateData(r, map[string]interface{}{
			"error":     msgProductFetch,
			"cart_size": cartSize(cart.Lines()),
		})); err != nil {
			log.Error(err)
		}
		return
	}

	opts := cartstore.OptionsFor(p.Category)
	sizes := sizeOptions
	if p.Category == cartstore.CategoryJewelery {
		sizes = ringSizes
	}
	if err := templates.ExecuteTemplate(w, "product", injectCommonTemplateData(r, map[string]interface{}{
		"product":    p,
		"show_size":  opts.Size,
		"show_color": opts.Color,
		"sizes":      sizes,
		"colors":     colorOptions,
		"flash":      popFlash(w, r),
		"cart_size":  cartSize(cart.Lines()),
	})); err != nil {
		log.Error(err)
	}
}

func (fe *frontendServer) addToCartHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	quantity, _ := strconv.Atoi(r.FormValue("quantity"))
	productID := r.FormValue("product_id")
	back := baseUrl + "/description/" + url.PathEscape(productID)

	if productID == "" {
		renderHTTPError(log, r, w, errors.New("product id not specified"), http.StatusUnprocessableEntity)
		return
	}
	p, err := fe.catalog.GetProduct(r.Context(), model.ID(productID))
	if errors.Is(err, catalog.ErrNotFound) {
		fe.notFoundHandler(w, r)
		return
	}
	if err != nil {
		log.WithField("error", err).Warn("failed to retrieve product for cart")
		setFlash(w, cartstore.MsgAddFailed)
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}

	payload := validator.AddToCartPayload{
		ProductID: productID,
		Category:  p.Category,
		Quantity:  quantity,
		Size:      r.FormValue("size"),
		Color:     r.FormValue("color"),
	}
	if err := payload.Validate(); err != nil {
		log.WithField("error", validator.ValidationErrorResponse(err)).Debug("rejected cart selection")
		setFlash(w, payload.Message(err))
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	log.WithField("product", payload.ProductID).WithField("quantity", payload.Quantity).Debug("adding to cart")

	cart, err := fe.cartStore(r)
	if err != nil {
		renderHTTPError(log, r, w, errors.Wrap(err, "could not retrieve cart"), http.StatusInternalServerError)
		return
	}
	if err := cart.AddOrIncrement(r.Context(), fe.cartSession(r), *p, payload.Quantity, payload.Size, payload.Color); err != nil {
		setFlash(w, cartstore.MsgAddFailed)
	} else {
		setFlash(w, msgAddedToCart)
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (fe *frontendServer) viewCartHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	log.Debug("view user cart")

	cart, err := fe.cartStore(r)
	if err != nil {
		renderHTTPError(log, r, w, errors.Wrap(err, "could not retrieve cart"), http.StatusInternalServerError)
		return
	}
	// reread the authoritative store on every view
	if err := cart.Load(r.Context(), fe.cartSession(r)); err != nil {
		log.WithField("error", err).Warn("could not refresh cart")
	}

	type cartItemView struct {
		Line         model.CartLine
		ShowSize     bool
		ShowColor    bool
		CanDecrement bool
		Inc, Dec     int
		Price        decimal.Decimal // unit price
	}
	lines := cart.Lines()
	items := make([]cartItemView, len(lines))
	for i, l := range lines {
		opts := cartstore.OptionsFor(l.Category)
		items[i] = cartItemView{
			Line:         l,
			ShowSize:     opts.Size,
			ShowColor:    opts.Color,
			CanDecrement: l.Quantity > 1,
			Inc:          l.Quantity + 1,
			Dec:          l.Quantity - 1,
			Price:        money.FromFloat(l.Price),
		}
	}

	if err := templates.ExecuteTemplate(w, "cart", injectCommonTemplateData(r, map[string]interface{}{
		"items":      items,
		"total_cost": cartstore.Total(lines),
		"error":      cart.Err(),
		"flash":      popFlash(w, r),
		"cart_size":  cartSize(lines),
	})); err != nil {
		log.Error(err)
	}
}

func (fe *frontendServer) setQuantityHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	quantity, _ := strconv.Atoi(r.FormValue("quantity"))
	payload := validator.SetQuantityPayload{
		ProductID: r.FormValue("product_id"),
		Quantity:  quantity,
	}
	if err := payload.Validate(); err != nil {
		renderHTTPError(log, r, w, validator.ValidationErrorResponse(err), http.StatusUnprocessableEntity)
		return
	}

	cart, err := fe.cartStore(r)
	if err != nil {
		renderHTTPError(log, r, w, errors.Wrap(err, "could not retrieve cart"), http.StatusInternalServerError)
		return
	}
	key := lineKey(r, payload.ProductID)
	log.WithField("line", key).WithField("quantity", payload.Quantity).Debug("updating cart line")
	if err := cart.SetQuantity(r.Context(), fe.cartSession(r), key, payload.Quantity); err != nil {
		log.WithField("error", err).Warn("cart update failed")
		setFlash(w, cartstore.MsgUpdateFailed)
	}
	http.Redirect(w, r, baseUrl+"/cart", http.StatusSeeOther)
}

func (fe *frontendServer) removeFromCartHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	payload := validator.RemoveLinePayload{ProductID: r.FormValue("product_id")}
	if err := payload.Validate(); err != nil {
		renderHTTPError(log, r, w, validator.ValidationErrorResponse(err), http.StatusUnprocessableEntity)
		return
	}

	cart, err := fe.cartStore(r)
	if err != nil {
		renderHTTPError(log, r, w, errors.Wrap(err, "could not retrieve cart"), http.StatusInternalServerError)
		return
	}
	key := lineKey(r, payload.ProductID)
	log.WithField("line", key).Debug("removing cart line")
	if err := cart.RemoveLine(r.Context(), fe.cartSession(r), key); err != nil {
		log.WithField("error", err).Warn("cart removal failed")
		setFlash(w, cartstore.MsgRemoveFailed)
	}
	http.Redirect(w, r, baseUrl+"/cart", http.StatusSeeOther)
}

func (fe *frontendServer) checkoutHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	cart, err := fe.cartStore(r)
	if err != nil {
		renderHTTPError(log, r, w, errors.Wrap(err, "could not retrieve cart"), http.StatusInternalServerError)
		return
	}
	res := cart.Checkout()
	log.WithField("result", res.String()).Info("checkout")
	setFlash(w, res.String())
	http.Redirect(w, r, baseUrl+"/cart", http.StatusSeeOther)
}

// checkForm validates p and re-renders page with the shopper-facing message when it fails.
func (fe *frontendServer) checkForm(w http.ResponseWriter, r *http.Request, page string, p validator.Payload, form map[string]interface{}) bool {
	err := p.Validate()
	if err == nil {
		return true
	}
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	log.WithField("error", validator.ValidationErrorResponse(err)).Debug("rejected form")
	fe.renderForm(w, r, page, http.StatusUnprocessableEntity, p.Message(err), form)
	return false
}

func (fe *frontendServer) loginPageHandler(w http.ResponseWriter, r *http.Request) {
	fe.renderForm(w, r, "login", http.StatusOK, "", nil)
}

func (fe *frontendServer) loginHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	payload := validator.LoginPayload{
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
	}
	form := map[string]interface{}{"email": payload.Email}
	if !fe.checkForm(w, r, "login", &payload, form) {
		return
	}

	u, err := fe.identity.Authenticate(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			fe.renderForm(w, r, "login", http.StatusUnauthorized, msgInvalidLogin, form)
			return
		}
		log.WithField("error", err).Warn("login failed")
		fe.renderForm(w, r, "login", http.StatusBadGateway, msgGenericError, form)
		return
	}
	if err := fe.sessions.SignIn(r.Context(), sessionID(r), *u); err != nil {
		log.WithField("error", err).Error("could not store session identity")
		fe.renderForm(w, r, "login", http.StatusInternalServerError, msgGenericError, form)
		return
	}
	log.WithField("user", u.ID).Info("signed in")
	http.Redirect(w, r, baseUrl+"/", http.StatusSeeOther)
}

func (fe *frontendServer) signupPageHandler(w http.ResponseWriter, r *http.Request) {
	fe.renderForm(w, r, "signup", http.StatusOK, "", nil)
}

func (fe *frontendServer) signupHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	payload := validator.SignupPayload{
		Name:     r.FormValue("name"),
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
		Confirm:  r.FormValue("confirm_password"),
	}
	form := map[string]interface{}{"name": payload.Name, "email": payload.Email}
	if !fe.checkForm(w, r, "signup", &payload, form) {
		return
	}

	existing, err := fe.identity.FindByEmail(r.Context(), payload.Email)
	if err != nil {
		log.WithField("error", err).Warn("signup email check failed")
		fe.renderForm(w, r, "signup", http.StatusBadGateway, msgGenericError, form)
		return
	}
	if len(existing) > 0 {
		fe.renderForm(w, r, "signup", http.StatusConflict, msgEmailTaken, form)
		return
	}
	u, err := fe.identity.Create(r.Context(), payload.Name, payload.Email, payload.Password)
	if err != nil {
		log.WithField("error", err).Warn("signup failed")
		fe.renderForm(w, r, "signup", http.StatusBadGateway, msgGenericError, form)
		return
	}
	log.WithField("user", u.ID).Info("signed up")
	setFlash(w, msgSignupSuccessful)
	http.Redirect(w, r, baseUrl+"/login", http.StatusSeeOther)
}

func (fe *frontendServer) forgotPasswordPageHandler(w http.ResponseWriter, r *http.Request) {
	fe.renderForm(w, r, "forgot_password", http.StatusOK, "", nil)
}

func (fe *frontendServer) forgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	payload := validator.ResetPasswordPayload{
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("new_password"),
		Confirm:  r.FormValue("confirm_password"),
	}
	form := map[string]interface{}{"email": payload.Email}
	if !fe.checkForm(w, r, "forgot_password", &payload, form) {
		return
	}

	users, err := fe.identity.FindByEmail(r.Context(), payload.Email)
	if err != nil {
		log.WithField("error", err).Warn("password reset lookup failed")
		fe.renderForm(w, r, "forgot_password", http.StatusBadGateway, msgGenericError, form)
		return
	}
	if len(users) == 0 {
		fe.renderForm(w, r, "forgot_password", http.StatusNotFound, msgEmailUnknown, form)
		return
	}
	u := users[0]
	u.Password = payload.Password
	if err := fe.identity.Replace(r.Context(), u); err != nil {
		log.WithField("error", err).Warn("password reset failed")
		fe.renderForm(w, r, "forgot_password", http.StatusBadGateway, msgGenericError, form)
		return
	}
	log.WithField("user", u.ID).Info("password reset")
	setFlash(w, msgPasswordUpdated)
	http.Redirect(w, r, baseUrl+"/login", http.StatusSeeOther)
}

func (fe *frontendServer) logoutHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	log.Debug("logging out")
	if err := fe.sessions.SignOut(r.Context(), sessionID(r)); err != nil {
		renderHTTPError(log, r, w, errors.Wrap(err, "failed to sign out"), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, baseUrl+"/", http.StatusSeeOther)
}

func (fe *frontendServer) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	log, ok := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	w.WriteHeader(http.StatusNotFound)
	if err := templates.ExecuteTemplate(w, "notfound", injectCommonTemplateData(r, nil)); err != nil && ok {
		log.Error(err)
	}
}

// renderForm re-renders one of the account forms with an inline message.
func (fe *frontendServer) renderForm(w http.ResponseWriter, r *http.Request, name string, code int, errMsg string, form map[string]interface{}) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	data := map[string]interface{}{
		"error": errMsg,
		"form":  form,
		"flash": popFlash(w, r),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := templates.ExecuteTemplate(w, name, injectCommonTemplateData(r, data)); err != nil {
		log.Error(err)
	}
}

// cartSession is the explicit session value every cart operation runs for.
func (fe *frontendServer) cartSession(r *http.Request) cartstore.Session {
	return cartstore.Session{ID: sessionID(r), User: currentUser(r)}
}

func (fe *frontendServer) cartStore(r *http.Request) (*cartstore.Store, error) {
	return fe.carts.Acquire(r.Context(), fe.cartSession(r))
}

func lineKey(r *http.Request, productID string) model.LineKey {
	return model.LineKey{
		ProductID: model.ID(productID),
		Size:      r.FormValue("size"),
		Color:     r.FormValue("color"),
	}
}

func renderHTTPError(log logrus.FieldLogger, r *http.Request, w http.ResponseWriter, err error, code int) {
	log.WithField("error", err).Error("request error")
	errMsg := fmt.Sprintf("%+v", err)

	w.WriteHeader(code)

	if templateErr := templates.ExecuteTemplate(w, "error", injectCommonTemplateData(r, map[string]interface{}{
		"error":       errMsg,
		"status_code": code,
		"status":      http.StatusText(code),
	})); templateErr != nil {
		log.Println(templateErr)
	}
}

func injectCommonTemplateData(r *http.Request, payload map[string]interface{}) map[string]interface{} {
	data := map[string]interface{}{
		"session_id":  sessionID(r),
		"request_id":  r.Context().Value(ctxKeyRequestID{}),
		"user":        currentUser(r),
		"currentYear": time.Now().Year(),
		"baseUrl":     baseUrl,
	}

	for k, v := range payload {
		data[k] = v
	}

	return data
}

func sessionID(r *http.Request) string {
	v := r.Context().Value(ctxKeySessionID{})
	if v != nil {
		return v.(string)
	}
	return ""
}

// get total # of items in cart
func cartSize(c []model.CartLine) int {
	cartSize := 0
	for _, item := range c {
		cartSize += item.Quantity
	}
	return cartSize
}

func setFlash(w http.ResponseWriter, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieFlash,
		Value:    url.QueryEscape(msg),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
	})
}

// popFlash returns the one-shot message left by the previous redirect and clears it.
func popFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(cookieFlash)
	if err != nil || c.Value == "" {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: cookieFlash, Path: "/", MaxAge: -1})
	msg, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return msg
}
