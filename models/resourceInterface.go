package models

type Resource interface {
	GetStoreId() string
}

type Identifier interface {
	GetId() int
}

func (s Store) GetStoreId() string { return s.ID }
func (u User) GetStoreId() string { return u.StoreId }
func (c Customer) GetStoreId() string { return c.StoreId }
func (p Product) GetStoreId() string { return p.StoreId }
func (z DeliveryZone) GetStoreId() string { return z.StoreId }
func (d Driver) GetStoreId() string { return d.StoreId }
func (o Order) GetStoreId() string { return o.StoreId }
func (d Delivery) GetStoreId() string { return d.StoreId }
func (p DriverPayout) GetStoreId() string { return p.StoreId }
func (c ChatConversation) GetStoreId() string { return c.StoreId }

func (c Customer) GetId() int { return c.ID }
func (p Product) GetId() int { return p.ID }
func (d Driver) GetId() int { return d.ID }
func (z DeliveryZone) GetId() int { return z.ID }
func (o Order) GetId() int { return o.ID }
func (d Delivery) GetId() int { return d.ID }
func (p DriverPayout) GetId() int { return p.ID }
func (c ChatConversation) GetId() int { return c.ID }
func (n Notification) GetId() int { return n.ID }
