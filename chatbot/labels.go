package chatbot

import (
	"fmt"
	"strings"

	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
)

var orderStatusLabels = map[models.OrderStatus]string{
	models.OrderStatusPending:        "хүлээн авсан",
	models.OrderStatusConfirmed:      "баталгаажсан",
	models.OrderStatusPreparing:      "бэлтгэж байна",
	models.OrderStatusReady:          "бэлэн болсон",
	models.OrderStatusOutForDelivery: "хүргэлтэнд гарсан",
	models.OrderStatusCompleted:      "хүргэгдсэн",
	models.OrderStatusCancelled:      "цуцлагдсан",
}

var deliveryStatusLabels = map[models.DeliveryStatus]string{
	models.DeliveryStatusPending:   "жолооч хуваарилахыг хүлээж байна",
	models.DeliveryStatusAssigned:  "жолоочид хуваарилсан",
	models.DeliveryStatusPickedUp:  "жолооч барааг авсан",
	models.DeliveryStatusInTransit: "замд явж байна",
	models.DeliveryStatusDelayed:   "саатаж байна",
	models.DeliveryStatusDelivered: "хүргэгдсэн",
	models.DeliveryStatusFailed:    "хүргэж чадаагүй",
	models.DeliveryStatusCancelled: "цуцлагдсан",
}

func orderStatusLabel(s models.OrderStatus) string {
	if l, ok := orderStatusLabels[s]; ok {
		return l
	}
	return string(s)
}

func deliveryStatusLabel(s models.DeliveryStatus) string {
	if l, ok := deliveryStatusLabels[s]; ok {
		return l
	}
	return string(s)
}

func zoneLine(z *models.DeliveryZone) string {
	var fee string
	switch z.FeeType {
	case utils.FeeTypeFree:
		fee = "үнэгүй"
	case utils.FeeTypeDistance:
		fee = fmt.Sprintf("%s + км тутамд %s", utils.FormatMNT(z.BaseFee), utils.FormatMNT(z.PerKmFee))
		if z.IncludedKm > 0 {
			fee += fmt.Sprintf(" (эхний %g км багтсан)", z.IncludedKm)
		}
	default:
		fee = utils.FormatMNT(z.BaseFee)
	}
	line := "- " + z.Name + ": " + fee
	if z.MinOrderForFree != nil {
		line += fmt.Sprintf(", %s-с дээш захиалгад үнэгүй", utils.FormatMNT(*z.MinOrderForFree))
	}
	if areas := z.AreaList(); len(areas) > 0 {
		line += " [" + strings.Join(areas, ", ") + "]"
	}
	return line
}

func productLine(p *models.Product, withStock bool) string {
	line := "- " + p.Name + ": " + utils.FormatMNT(p.Price)
	if withStock {
		if p.InStock(1) {
			if p.TrackStock == nil || *p.TrackStock {
				line += fmt.Sprintf(" (%d ширхэг байна)", p.StockQty)
			} else {
				line += " (байгаа)"
			}
		} else {
			line += " (дууссан)"
		}
	}
	return line
}
