package chatbot

import (
	"bytes"
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"text/template"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
)

const productReplyLimit = 5

// replyData holds every field a reply template may use.
type replyData struct {
	StoreName     string
	StorePhone    string
	StoreEmail    string
	StoreAddress  string
	BusinessHours string
	PaymentInfo   string
	ReturnPolicy  string

	OrderNumber    string
	OrderStatus    string
	DeliveryStatus string
	TrackingCode   string
	EtaMinutes     int
	DriverName     string

	Zones    string
	Products string
}

type Reply struct {
	Text    string
	Handoff bool
}

type Responder struct {
	rules     *RuleSet
	templates map[string]*template.Template
}

func NewResponder(rules *RuleSet) (*Responder, error) {
	r := &Responder{rules: rules, templates: map[string]*template.Template{}}
	add := func(src string) error {
		if _, ok := r.templates[src]; ok {
			return nil
		}
		t, err := template.New("reply").Option("missingkey=zero").Parse(src)
		if err != nil {
			return err
		}
		r.templates[src] = t
		return nil
	}
	for _, src := range rules.Fallback {
		if err := add(src); err != nil {
			return nil, err
		}
	}
	for _, rule := range rules.Intents {
		for _, src := range append(append([]string{}, rule.Replies...), rule.Missing...) {
			if err := add(src); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

// pick chooses a template by hashing the message, so the same question always
// gets the same answer.
func pick(options []string, seed string, index int) string {
	if len(options) == 0 {
		return ""
	}
	if index >= 0 {
		if index >= len(options) {
			index = len(options) - 1
		}
		return options[index]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return options[int(h.Sum32()%uint32(len(options)))]
}

func (r *Responder) render(src string, data replyData) (string, error) {
	t, ok := r.templates[src]
	if !ok {
		return src, nil
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func storeData(store *models.Store) replyData {
	return replyData{
		StoreName:     store.Name,
		StorePhone:    store.Phone,
		StoreEmail:    store.Email,
		StoreAddress:  store.Address,
		BusinessHours: store.BusinessHours,
		PaymentInfo:   store.PaymentInfo,
		ReturnPolicy:  store.ReturnPolicy,
	}
}

// Greeting is shown when the widget opens.
func (r *Responder) Greeting(store *models.Store) string {
	if g := strings.TrimSpace(store.WidgetGreeting); g != "" {
		return g
	}
	rule, ok := r.rules.Rule("greeting")
	if !ok || len(rule.Replies) == 0 {
		return store.Name
	}
	text, err := r.render(rule.Replies[0], storeData(store))
	if err != nil {
		return store.Name
	}
	return text
}

// Respond answers a classified message with the store's own data. ctx must
// carry the store id.
func (r *Responder) Respond(ctx context.Context, store *models.Store, conv *models.ChatConversation, raw string, res Result) (Reply, error) {
	data := storeData(store)
	rule, ok := r.rules.Rule(res.Intent)
	if !ok {
		text, err := r.render(pick(r.rules.Fallback, res.Normalized, -1), data)
		return Reply{Text: text}, err
	}

	// -1 renders a normal reply; 0 and 1 select the "missing input" and
	// "not found" replies.
	variant := -1
	var err error
	switch rule.Name {
	case "order_status":
		variant, err = r.fillOrder(ctx, store.ID, res.Entities, &data)
	case "track_delivery":
		variant, err = r.fillTracking(ctx, store.ID, res.Entities, &data)
	case "delivery_fee", "delivery_info":
		variant, err = r.fillZones(ctx, &data)
	case "price", "product_search", "stock_check":
		variant, err = r.fillProducts(ctx, store.ID, res.Entities, rule.Name == "stock_check", &data)
	case "human_handoff":
		if _, err := models.RequestHandoff(ctx, conv, raw); err != nil {
			return Reply{}, err
		}
	}
	if err != nil {
		return Reply{}, err
	}

	src := pick(rule.Replies, res.Normalized, -1)
	if variant >= 0 && len(rule.Missing) > 0 {
		src = pick(rule.Missing, res.Normalized, variant)
	}
	text, err := r.render(src, data)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: text, Handoff: rule.Name == "human_handoff"}, nil
}

func notFound(err error) bool {
	return errors.Is(err, utils.ErrorRecordNotFound)
}

func (r *Responder) fillOrder(ctx context.Context, storeId string, e Entities, data *replyData) (int, error) {
	if e.OrderNumber == "" {
		return 0, nil
	}
	data.OrderNumber = e.OrderNumber
	order, err := models.GetOrderByNumber(ctx, storeId, e.OrderNumber)
	if notFound(err) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	data.OrderNumber = order.OrderNumber
	data.OrderStatus = orderStatusLabel(order.Status)
	delivery, err := models.GetLatestDeliveryForOrder(ctx, storeId, order.ID)
	if err != nil && !notFound(err) {
		return 0, err
	}
	if delivery != nil {
		data.DeliveryStatus = deliveryStatusLabel(delivery.Status)
		data.TrackingCode = delivery.TrackingCode
	}
	return -1, nil
}

func (r *Responder) fillTracking(ctx context.Context, storeId string, e Entities, data *replyData) (int, error) {
	var delivery *models.Delivery
	var err error
	switch {
	case e.TrackingCode != "":
		delivery, err = models.GetDeliveryByTrackingCode(ctx, storeId, e.TrackingCode)
	case e.OrderNumber != "":
		var order *models.Order
		order, err = models.GetOrderByNumber(ctx, storeId, e.OrderNumber)
		if err == nil {
			delivery, err = models.GetLatestDeliveryForOrder(ctx, storeId, order.ID)
		}
	default:
		return 0, nil
	}
	if notFound(err) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	data.TrackingCode = delivery.TrackingCode
	data.DeliveryStatus = deliveryStatusLabel(delivery.Status)
	if !delivery.Status.IsTerminal() {
		data.EtaMinutes = delivery.EtaMinutes
	}
	if delivery.DriverId != nil {
		if driver, err := models.GetDriver(ctx, *delivery.DriverId); err == nil {
			data.DriverName = utils.FirstName(driver.Name)
		}
	}
	return -1, nil
}

func (r *Responder) fillZones(ctx context.Context, data *replyData) (int, error) {
	zones, err := models.ListActiveZones(ctx)
	if err != nil {
		return 0, err
	}
	if len(zones) == 0 {
		return 0, nil
	}
	lines := make([]string, 0, len(zones))
	for _, z := range zones {
		lines = append(lines, zoneLine(z))
	}
	data.Zones = strings.Join(lines, "\n")
	return -1, nil
}

func (r *Responder) fillProducts(ctx context.Context, storeId string, e Entities, withStock bool, data *replyData) (int, error) {
	if len(e.ProductTerms) == 0 {
		return 0, nil
	}
	products, err := models.SearchProducts(ctx, storeId, e.ProductTerms, productReplyLimit)
	if err != nil {
		return 0, err
	}
	if len(products) == 0 {
		return 1, nil
	}
	lines := make([]string, 0, len(products))
	for _, p := range products {
		lines = append(lines, productLine(p, withStock))
	}
	data.Products = strings.Join(lines, "\n")
	return -1, nil
}

func logReplyError(storeId string, intent string, err error) {
	config.LogError(config.GetLogger(), "Chatbot", "Respond", "intent "+intent, storeId, err)
}

func (r *Responder) fallback(store *models.Store, res Result) string {
	text, err := r.render(pick(r.rules.Fallback, res.Normalized, -1), storeData(store))
	if err != nil || text == "" {
		return store.Name
	}
	return text
}
