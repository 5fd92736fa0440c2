package handlers

import (
	"context"
	"net/http"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/middlewares"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/gin-gonic/gin"
)

// deliveryView is a delivery row with the names the dashboard list shows.
type deliveryView struct {
	*models.Delivery
	OrderNumber string `json:"order_number,omitempty"`
	DriverName  string `json:"driver_name,omitempty"`
	ZoneName    string `json:"zone_name,omitempty"`
}

type assignRequest struct {
	DriverId int `json:"driver_id" binding:"required"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type rescheduleRequest struct {
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// enrichDeliveries resolves order, driver and zone names in three batches.
func enrichDeliveries(ctx context.Context, deliveries []*models.Delivery) []deliveryView {
	var orderIds, driverIds, zoneIds []int
	for _, d := range deliveries {
		orderIds = append(orderIds, d.OrderId)
		if d.DriverId != nil {
			driverIds = append(driverIds, *d.DriverId)
		}
		if d.ZoneId != nil {
			zoneIds = append(zoneIds, *d.ZoneId)
		}
	}
	orderIds = utils.UniqueSlice(orderIds)
	driverIds = utils.UniqueSlice(driverIds)
	zoneIds = utils.UniqueSlice(zoneIds)

	orderNumbers := map[int]string{}
	if len(orderIds) > 0 {
		orders, errs := middlewares.GetOrders(ctx, orderIds)
		for i, o := range orders {
			if o != nil && (len(errs) <= i || errs[i] == nil) {
				orderNumbers[orderIds[i]] = o.OrderNumber
			}
		}
	}
	driverNames := map[int]string{}
	if len(driverIds) > 0 {
		drivers, errs := middlewares.GetDrivers(ctx, driverIds)
		for i, d := range drivers {
			if d != nil && (len(errs) <= i || errs[i] == nil) {
				driverNames[driverIds[i]] = d.Name
			}
		}
	}
	zoneNames := map[int]string{}
	if len(zoneIds) > 0 {
		zones, errs := middlewares.GetDeliveryZones(ctx, zoneIds)
		for i, z := range zones {
			if z != nil && (len(errs) <= i || errs[i] == nil) {
				zoneNames[zoneIds[i]] = z.Name
			}
		}
	}

	views := make([]deliveryView, 0, len(deliveries))
	for _, d := range deliveries {
		v := deliveryView{Delivery: d, OrderNumber: orderNumbers[d.OrderId]}
		if d.DriverId != nil {
			v.DriverName = driverNames[*d.DriverId]
		}
		if d.ZoneId != nil {
			v.ZoneName = zoneNames[*d.ZoneId]
		}
		views = append(views, v)
	}
	return views
}

func listDeliveries(c *gin.Context) {
	limit, after := pageParams(c)
	var filter models.DeliveryFilter
	if s := c.Query("status"); s != "" {
		status := models.DeliveryStatus(s)
		if !status.IsValid() {
			respondError(c, "listDeliveries", utils.NewValidationError("unknown delivery status"))
			return
		}
		filter.Status = &status
	}
	var ok bool
	if filter.DriverId, ok = optionalIntQuery(c, "driver_id"); !ok {
		return
	}
	if filter.From, ok = parseDateQuery(c, "from"); !ok {
		return
	}
	if filter.To, ok = parseDateQuery(c, "to"); !ok {
		return
	}

	ctx := c.Request.Context()
	page, err := models.PaginateDeliveries(ctx, limit, after, filter)
	if err != nil {
		respondError(c, "listDeliveries", err)
		return
	}
	nodes := make([]*models.Delivery, 0, len(page.Edges))
	for _, e := range page.Edges {
		nodes = append(nodes, e.Node)
	}
	views := enrichDeliveries(ctx, nodes)
	edges := make([]gin.H, 0, len(views))
	for i, v := range views {
		edges = append(edges, gin.H{"node": v, "cursor": page.Edges[i].Cursor})
	}
	c.JSON(http.StatusOK, gin.H{"edges": edges, "pageInfo": page.PageInfo})
}

func getDelivery(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	delivery, err := models.GetDelivery(ctx, id)
	if err != nil {
		respondError(c, "getDelivery", err)
		return
	}
	events, err := models.GetDeliveryEvents(ctx, id)
	if err != nil {
		respondError(c, "getDelivery", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"delivery": enrichDeliveries(ctx, []*models.Delivery{delivery})[0], "events": events})
}

func createDelivery(c *gin.Context) {
	var input models.NewDelivery
	if !bindJSON(c, &input) {
		return
	}
	delivery, err := models.CreateDelivery(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "createDelivery", err)
		return
	}
	c.JSON(http.StatusCreated, delivery)
}

// transition wraps a lifecycle call that takes only the delivery id.
func transition(name string, fn func(ctx context.Context, id int) (*models.Delivery, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		delivery, err := fn(c.Request.Context(), id)
		if err != nil {
			respondError(c, name, err)
			return
		}
		c.JSON(http.StatusOK, delivery)
	}
}

// transitionWithReason is transition for calls that carry a free-text reason.
func transitionWithReason(name string, fn func(ctx context.Context, id int, reason string) (*models.Delivery, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req reasonRequest
		if !bindJSON(c, &req) {
			return
		}
		delivery, err := fn(c.Request.Context(), id, req.Reason)
		if err != nil {
			respondError(c, name, err)
			return
		}
		c.JSON(http.StatusOK, delivery)
	}
}

func assignDriver(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req assignRequest
	if !bindJSON(c, &req) {
		return
	}
	delivery, err := models.AssignDriver(c.Request.Context(), id, req.DriverId)
	if err != nil {
		respondError(c, "assignDriver", err)
		return
	}
	c.JSON(http.StatusOK, delivery)
}

func rescheduleDelivery(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req rescheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	delivery, err := models.RescheduleDelivery(c.Request.Context(), id, req.ScheduledAt)
	if err != nil {
		respondError(c, "rescheduleDelivery", err)
		return
	}
	c.JSON(http.StatusOK, delivery)
}

// trackDelivery is the public tracking page feed.
func trackDelivery(c *gin.Context) {
	info, err := models.TrackDelivery(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, "trackDelivery", err)
		return
	}
	c.JSON(http.StatusOK, info)
}
