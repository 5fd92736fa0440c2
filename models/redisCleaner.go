package models

import (
	"fmt"

	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
)

type RedisCleaner interface {
	RemoveInstanceRedis() error // remove one
	RemoveAllRedis() error      // remove store list if exists
}

// remove both item & list
func RemoveRedisBoth[T RedisCleaner](obj T) error {
	if err := obj.RemoveInstanceRedis(); err != nil {
		return err
	}
	return obj.RemoveAllRedis()
}

func (obj Store) RemoveInstanceRedis() error {
	return config.RemoveRedisKey("Store:"+obj.ID, "StoreSlug:"+obj.Slug)
}

func (obj Store) RemoveAllRedis() error {
	return config.RemoveRedisKey(fmt.Sprintf("StoreOwner:%d", obj.OwnerUserId))
}

func (obj DeliveryZone) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[DeliveryZone](obj.ID)
}

func (obj DeliveryZone) RemoveAllRedis() error {
	return utils.RemoveRedisList[DeliveryZone](obj.StoreId)
}

func (obj Driver) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[Driver](obj.ID)
}

func (obj Driver) RemoveAllRedis() error {
	return utils.RemoveRedisList[Driver](obj.StoreId)
}

func (obj Product) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[Product](obj.ID)
}

func (obj Product) RemoveAllRedis() error {
	return nil
}

func (obj Customer) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[Customer](obj.ID)
}

func (obj Customer) RemoveAllRedis() error {
	return nil
}

func (obj User) RemoveInstanceRedis() error {
	return config.RemoveRedisKey("User:" + obj.Username)
}

func (obj User) RemoveAllRedis() error {
	return nil
}
