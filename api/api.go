/*
Copyright 2025 Praxis Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/praxisfinance/paysync"
	"github.com/praxisfinance/paysync/api/middleware"
	"github.com/praxisfinance/paysync/config"
)

type Api struct {
	paysync *paysync.Paysync
	router  *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/webhooks/reports", a.ReceiveReportNotification)
	router.POST("/sync", a.TriggerSync)
	router.GET("/sync-runs", a.GetAllSyncRuns)
	router.GET("/sync-runs/:id", a.GetSyncRun)
	return a.router
}

func NewAPI(p *paysync.Paysync) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{paysync: p, router: r}
}
